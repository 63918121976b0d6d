package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// LocalPath returns the override file paired with a config file:
// `dir/libgal.json5` -> `dir/libgal.local.json5`.
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func readJSON5[T any](path string) (T, bool, error) {
	var out T
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(contents) == 0 {
		return out, false, nil
	}
	if err := json5.Unmarshal(contents, &out); err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads a json5 file and merges `<name>.local.<ext>` over it,
// the local file wins on every field it sets. os.ErrNotExist is returned when
// neither file exists.
func ReadConfig[T any](name string) (T, error) {
	out, found, err := readJSON5[T](name)
	if err != nil {
		return out, err
	}

	local := LocalPath(name)
	override, foundLocal, err := readJSON5[T](local)
	if err != nil {
		return out, err
	}
	if foundLocal {
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", local)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively walks up from the working directory until it finds a
// directory containing `name`.
func ReadRecursively[T any](name string) (T, string, error) {
	var zero T
	current, err := os.Getwd()
	if err != nil {
		return zero, "", err
	}

	for {
		path := filepath.Join(current, name)
		config, err := ReadConfig[T](path)
		if err == nil {
			return config, path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return zero, "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return zero, "", os.ErrNotExist
		}
		current = parent
	}
}

// ExpandEnv replaces $VAR and ${VAR} in every string field reachable from
// ptr, so secrets can live in the environment instead of the config file.
func ExpandEnv(ptr any, lookup func(string) string) {
	if lookup == nil {
		lookup = os.Getenv
	}
	expandValue(reflect.ValueOf(ptr), lookup)
}

func expandValue(v reflect.Value, lookup func(string) string) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			expandValue(v.Elem(), lookup)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				expandValue(v.Field(i), lookup)
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i), lookup)
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			elem := v.MapIndex(key)
			copied := reflect.New(elem.Type()).Elem()
			copied.Set(elem)
			expandValue(copied, lookup)
			v.SetMapIndex(key, copied)
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.Expand(v.String(), lookup))
		}
	}
}
