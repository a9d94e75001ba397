package schema

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
)

//go:embed openapi
var embedded embed.FS

// DefaultRoot is the entry document inside the embedded tree.
const DefaultRoot = "openapi/swagger.json"

// maxRefDepth bounds nested file references.
const maxRefDepth = 32

var (
	ErrRefCycle        = errors.New("schema: reference nesting too deep")
	ErrBadPointer      = errors.New("schema: unresolvable json pointer")
	ErrNotCompiled     = errors.New("schema: not compiled")
	ErrInvalidDocument = errors.New("schema: invalid document")
)

// Compiler bundles a multi-file OpenAPI document into one.
// External $refs are inlined; "#/..." refs are kept as they are.
// The first successful result is cached.
type Compiler struct {
	fsys fs.FS
	root string

	mu       sync.RWMutex
	compiled map[string]any
	raw      []byte
}

// New creates a Compiler for root inside fsys.
func New(fsys fs.FS, root string) *Compiler {
	return &Compiler{fsys: fsys, root: root}
}

// Default returns a Compiler for the embedded API schema.
func Default() *Compiler {
	return New(embedded, DefaultRoot)
}

// Compile resolves the document. Later calls return immediately once a
// compile has succeeded.
func (c *Compiler) Compile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.compiled != nil {
		return nil
	}

	doc, err := c.load(ctx, c.root, 0)
	if err != nil {
		return err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %s is not an object", ErrInvalidDocument, c.root)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	c.compiled = obj
	c.raw = raw
	return nil
}

// Schema returns the compiled document, or nil before Compile succeeds.
func (c *Compiler) Schema() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compiled
}

// ServeHTTP writes the compiled document as JSON.
func (c *Compiler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	raw := c.raw
	c.mu.RUnlock()

	if raw == nil {
		http.Error(w, ErrNotCompiled.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (c *Compiler) load(ctx context.Context, name string, depth int) (any, error) {
	if depth > maxRefDepth {
		return nil, fmt.Errorf("%w: %s", ErrRefCycle, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(c.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", name, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDocument, name, err)
	}

	return c.resolve(ctx, doc, path.Dir(name), depth)
}

func (c *Compiler) resolve(ctx context.Context, node any, dir string, depth int) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && !strings.HasPrefix(ref, "#") {
			return c.external(ctx, ref, dir, depth)
		}
		for k, child := range v {
			resolved, err := c.resolve(ctx, child, dir, depth)
			if err != nil {
				return nil, err
			}
			v[k] = resolved
		}
		return v, nil
	case []any:
		for i, child := range v {
			resolved, err := c.resolve(ctx, child, dir, depth)
			if err != nil {
				return nil, err
			}
			v[i] = resolved
		}
		return v, nil
	default:
		return v, nil
	}
}

func (c *Compiler) external(ctx context.Context, ref, dir string, depth int) (any, error) {
	file, fragment, _ := strings.Cut(ref, "#")
	target, err := c.load(ctx, path.Join(dir, file), depth+1)
	if err != nil {
		return nil, err
	}
	return pointer(target, fragment)
}

// pointer walks an RFC 6901 JSON pointer.
func pointer(doc any, ptr string) (any, error) {
	if ptr == "" || ptr == "/" {
		return doc, nil
	}

	cur := doc
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[tok]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrBadPointer, ptr)
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("%w: %s", ErrBadPointer, ptr)
			}
			cur = v[i]
		default:
			return nil, fmt.Errorf("%w: %s", ErrBadPointer, ptr)
		}
	}
	return cur, nil
}
