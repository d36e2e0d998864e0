// Package loader parses pipeline HCL files into the format-agnostic model.
// It accepts a single .hcl file or a directory, in which case every .hcl
// file underneath is loaded in lexical order.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/slipstream/internal/ctxlog"
	"github.com/vk/slipstream/internal/hclspec"
	"github.com/vk/slipstream/internal/pipeline"
)

// Load reads the pipeline definition at path and translates it into a
// model. Argument expressions are evaluated eagerly; pipeline files are
// static declarations, there is no cross-node expression scope.
func Load(ctx context.Context, path string) (*pipeline.Model, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl pipeline files found at %q", path)
	}
	logger.Debug("Discovered pipeline files.", "path", path, "count", len(files))

	parser := hclparse.NewParser()
	model := &pipeline.Model{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing %s: %s", file, diags.Error())
		}
		var spec hclspec.File
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &spec); diags.HasErrors() {
			return nil, fmt.Errorf("decoding %s: %s", file, diags.Error())
		}
		if err := appendFile(model, &spec); err != nil {
			return nil, fmt.Errorf("translating %s: %w", file, err)
		}
	}
	logger.Debug("Pipeline model loaded.",
		"buffers", len(model.Buffers), "scalars", len(model.Scalars), "nodes", len(model.Nodes))
	return model, nil
}

func findFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".hcl") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning pipeline directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// appendFile translates one decoded schema file into the model, evaluating
// every node argument expression to a concrete value.
func appendFile(model *pipeline.Model, spec *hclspec.File) error {
	for _, b := range spec.Buffers {
		model.Buffers = append(model.Buffers, &pipeline.Buffer{Name: b.Name, Size: b.Size})
	}
	for _, s := range spec.Scalars {
		model.Scalars = append(model.Scalars, &pipeline.Scalar{Name: s.Name, Value: s.Value})
	}
	for _, n := range spec.Nodes {
		attrs, diags := n.Body.JustAttributes()
		if diags.HasErrors() {
			return fmt.Errorf("node %q: %s", n.Name, diags.Error())
		}
		args := make(map[string]cty.Value, len(attrs))
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return fmt.Errorf("node %q: argument %q: %s", n.Name, name, diags.Error())
			}
			args[name] = val
		}
		model.Nodes = append(model.Nodes, &pipeline.Node{Name: n.Name, Op: n.Op, Args: args})
	}
	return nil
}
