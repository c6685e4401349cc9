// Package templates persists named day templates on disk, one YAML file
// per template, grouped by user.
package templates

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/peterbourgon/diskv/v3"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dayplan/internal/engine"
	"github.com/roach88/dayplan/internal/schedule"
)

var (
	// ErrNotFound is returned for a template name the user does not have.
	ErrNotFound = errors.New("template not found")
	// ErrNoDefault is returned when the user has no templates at all.
	ErrNoDefault = errors.New("no default template")
)

const (
	templatesDir = "templates"
	defaultFile  = "default"
	fileExt      = ".yaml"
)

// Store is a diskv-backed engine.TemplateStore.
//
// On disk a template lives at <base>/<user>/templates/<name>.yaml, with user
// and name base64url-encoded so any string is a safe file name. The user's
// default template name is kept in <base>/<user>/default.
//
// Every user with at least one template has exactly one default: the first
// template saved becomes the default, and deleting the default promotes the
// alphabetically first remaining template.
type Store struct {
	d *diskv.Diskv
}

var _ engine.TemplateStore = (*Store)(nil)

// Open returns a store rooted at basePath. The directory is created on
// first write.
func Open(basePath string) *Store {
	return &Store{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      1024 * 1024, // 1MB
	})}
}

// LoadNamedTemplate reads one template.
func (s *Store) LoadNamedTemplate(_ context.Context, userID, name string) (schedule.Template, error) {
	name = schedule.NormalizeName(name)
	key := templateKey(userID, name)
	if !s.d.Has(key) {
		return schedule.Template{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	raw, err := s.d.Read(key)
	if err != nil {
		return schedule.Template{}, fmt.Errorf("read template %q: %w", name, err)
	}
	var t schedule.Template
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return schedule.Template{}, fmt.Errorf("decode template %q: %w", name, err)
	}
	t.Name = name
	return t, nil
}

// SaveNamedTemplate validates and writes t under name, replacing any
// previous version.
func (s *Store) SaveNamedTemplate(ctx context.Context, userID, name string, t schedule.Template) error {
	name = schedule.NormalizeName(name)
	if name == "" {
		return fmt.Errorf("save template: %w: name is empty", schedule.ErrInvalid)
	}
	t = t.Clone()
	t.Name = name
	if err := t.Validate(); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	raw, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode template %q: %w", name, err)
	}
	if err := s.d.Write(templateKey(userID, name), raw); err != nil {
		return fmt.Errorf("write template %q: %w", name, err)
	}

	if !s.d.Has(defaultKey(userID)) {
		return s.writeDefault(userID, name)
	}
	return nil
}

// Delete removes a template. Deleting the default promotes another one.
func (s *Store) Delete(ctx context.Context, userID, name string) error {
	name = schedule.NormalizeName(name)
	key := templateKey(userID, name)
	if !s.d.Has(key) {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err := s.d.Erase(key); err != nil {
		return fmt.Errorf("delete template %q: %w", name, err)
	}

	current, err := s.DefaultName(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoDefault) {
		return err
	}
	if current != name {
		return nil
	}

	names, err := s.Names(ctx, userID)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return s.d.Erase(defaultKey(userID))
	}
	return s.writeDefault(userID, names[0])
}

// Names lists the user's template names in order.
func (s *Store) Names(ctx context.Context, userID string) ([]string, error) {
	prefix := encode(userID) + "/" + templatesDir + "/"
	var names []string
	for key := range s.d.KeysPrefix(prefix, ctx.Done()) {
		name, err := decode(strings.TrimPrefix(key, prefix))
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		names = append(names, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// SetDefault marks an existing template as the user's default.
func (s *Store) SetDefault(_ context.Context, userID, name string) error {
	name = schedule.NormalizeName(name)
	if !s.d.Has(templateKey(userID, name)) {
		return fmt.Errorf("set default %q: %w", name, ErrNotFound)
	}
	return s.writeDefault(userID, name)
}

// DefaultName returns the user's default template name.
func (s *Store) DefaultName(_ context.Context, userID string) (string, error) {
	key := defaultKey(userID)
	if !s.d.Has(key) {
		return "", ErrNoDefault
	}
	raw, err := s.d.Read(key)
	if err != nil {
		return "", fmt.Errorf("read default template: %w", err)
	}
	return string(raw), nil
}

func (s *Store) writeDefault(userID, name string) error {
	if err := s.d.Write(defaultKey(userID), []byte(name)); err != nil {
		return fmt.Errorf("write default template: %w", err)
	}
	return nil
}

func templateKey(userID, name string) string {
	return encode(userID) + "/" + templatesDir + "/" + encode(name)
}

func defaultKey(userID string) string {
	return encode(userID) + "/" + defaultFile
}

// keyToPathTransform maps "a/b/c" to directory a/b and file c, adding the
// YAML extension to template files.
func keyToPathTransform(key string) *diskv.PathKey {
	parts := strings.Split(key, "/")
	file := parts[len(parts)-1]
	dir := parts[:len(parts)-1]
	if len(dir) > 0 && dir[len(dir)-1] == templatesDir {
		file += fileExt
	}
	return &diskv.PathKey{Path: dir, FileName: file}
}

func pathToKeyTransform(pk *diskv.PathKey) string {
	parts := append(append([]string{}, pk.Path...), strings.TrimSuffix(pk.FileName, fileExt))
	return strings.Join(parts, "/")
}

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func decode(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode %q: %w", s, err)
	}
	return string(b), nil
}
