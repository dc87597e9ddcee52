// render.go: Template rendering for Morpheus
//
// The renderer adapts Go text/template to the render-in-place workflow:
// every template file "name.ext.j2" is rendered next to itself as
// "name.ext" and the template is removed unless KeepTemplate is set.
// Outputs are written atomically so a failed render never leaves a
// truncated file behind.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/agilira/go-errors"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"
)

// DefaultTemplateExtension selects the files RenderAll renders.
const DefaultTemplateExtension = ".j2"

// UndefinedBehaviour controls how missing keys render.
type UndefinedBehaviour string

const (
	// Undefined renders a missing key as an empty string
	Undefined UndefinedBehaviour = "Undefined"
	// ChainableUndefined renders a missing key as an empty string
	ChainableUndefined UndefinedBehaviour = "ChainableUndefined"
	// DebugUndefined leaves a visible marker for every missing key
	DebugUndefined UndefinedBehaviour = "DebugUndefined"
	// StrictUndefined fails rendering on the first missing key
	StrictUndefined UndefinedBehaviour = "StrictUndefined"
)

// blankUndefinedFunc ends every printing action under Undefined and
// ChainableUndefined.
const blankUndefinedFunc = "morpheusBlankUndefined"

var undefinedBehaviours = []UndefinedBehaviour{
	Undefined, ChainableUndefined, DebugUndefined, StrictUndefined,
}

// ParseUndefinedBehaviour validates a behaviour name. The empty string
// selects Undefined.
func ParseUndefinedBehaviour(name string) (UndefinedBehaviour, error) {
	if name == "" {
		return Undefined, nil
	}
	for _, behaviour := range undefinedBehaviours {
		if string(behaviour) == name {
			return behaviour, nil
		}
	}

	names := make([]string, len(undefinedBehaviours))
	for i, behaviour := range undefinedBehaviours {
		names[i] = string(behaviour)
	}
	return "", errors.New(ErrCodeInvalidUndefined,
		fmt.Sprintf("unknown undefined behaviour %q (expected one of %s)", name, strings.Join(names, ", ")))
}

// RenderOptions configures a Renderer.
type RenderOptions struct {
	// BasePath is the directory walked by RenderAll
	BasePath string

	// Extensions selects template files by name suffix (default ".j2")
	Extensions []string

	// KeepTemplate keeps template files after rendering
	KeepTemplate bool

	// Undefined is the missing key behaviour name (default "Undefined")
	Undefined string
}

// WithDefaults returns a copy of the options with unset fields filled in.
func (o RenderOptions) WithDefaults() RenderOptions {
	if o.BasePath == "" {
		o.BasePath = "."
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{DefaultTemplateExtension}
	} else {
		o.Extensions = append([]string(nil), o.Extensions...)
	}
	if o.Undefined == "" {
		o.Undefined = string(Undefined)
	}
	return o
}

// Renderer renders templates with a fixed set of options.
type Renderer struct {
	options   RenderOptions
	undefined UndefinedBehaviour
	env       map[string]string
	logger    zerolog.Logger
	audit     *AuditLogger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithEnvironment sets the snapshot served by the environ template function.
func WithEnvironment(env map[string]string) RendererOption {
	return func(r *Renderer) {
		r.env = env
	}
}

// WithRendererLogger sets the logger used to trace rendering.
func WithRendererLogger(logger zerolog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithRendererAudit records rendered and removed templates.
func WithRendererAudit(audit *AuditLogger) RendererOption {
	return func(r *Renderer) {
		r.audit = audit
	}
}

// NewRenderer validates opts and creates a renderer.
func NewRenderer(opts RenderOptions, rendererOpts ...RendererOption) (*Renderer, error) {
	options := opts.WithDefaults()

	undefined, err := ParseUndefinedBehaviour(options.Undefined)
	if err != nil {
		return nil, err
	}
	for _, ext := range options.Extensions {
		if ext == "" {
			return nil, errors.New(ErrCodeInvalidConfig, "template extension cannot be empty")
		}
	}

	r := &Renderer{
		options:   options,
		undefined: undefined,
		env:       map[string]string{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range rendererOpts {
		opt(r)
	}
	return r, nil
}

// Options returns the effective options.
func (r *Renderer) Options() RenderOptions {
	return r.options
}

// funcs returns the functions available to every template.
func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"b64encode": func(value interface{}) string {
			return base64.StdEncoding.EncodeToString([]byte(fmt.Sprint(value)))
		},
		"environ": func(key string) string {
			return r.env[key]
		},
		blankUndefinedFunc: func(value interface{}) interface{} {
			if value == nil {
				return ""
			}
			return value
		},
	}
}

// blankUndefined appends blankUndefinedFunc to the pipeline of every action
// that prints, so a missing key renders as "" while data values are printed
// untouched.
func blankUndefined(tree *parse.Tree, node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			blankUndefined(tree, child)
		}
	case *parse.ActionNode:
		if len(n.Pipe.Decl) > 0 {
			return
		}
		ident := parse.NewIdentifier(blankUndefinedFunc).SetTree(tree).SetPos(n.Pos)
		n.Pipe.Cmds = append(n.Pipe.Cmds, &parse.CommandNode{
			NodeType: parse.NodeCommand,
			Pos:      n.Pos,
			Args:     []parse.Node{ident},
		})
	case *parse.IfNode:
		blankUndefined(tree, n.List)
		blankUndefined(tree, n.ElseList)
	case *parse.RangeNode:
		blankUndefined(tree, n.List)
		blankUndefined(tree, n.ElseList)
	case *parse.WithNode:
		blankUndefined(tree, n.List)
		blankUndefined(tree, n.ElseList)
	}
}

// RenderString renders text in memory. name is used in error messages.
func (r *Renderer) RenderString(name, text string, data map[string]interface{}) (string, error) {
	missingKey := "missingkey=default"
	if r.undefined == StrictUndefined {
		missingKey = "missingkey=error"
	}

	tmpl, err := template.New(name).Option(missingKey).Funcs(r.funcs()).Parse(text)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeTemplateError,
			fmt.Sprintf("failed to parse template %s", name)).
			WithContext("template", name)
	}
	if r.undefined == Undefined || r.undefined == ChainableUndefined {
		for _, t := range tmpl.Templates() {
			if t.Tree != nil {
				blankUndefined(t.Tree, t.Tree.Root)
			}
		}
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", errors.Wrap(err, ErrCodeTemplateError,
			fmt.Sprintf("failed to render template %s", name)).
			WithContext("template", name)
	}

	return out.String(), nil
}

// OutputPath returns the path a template renders to: the template path
// without its last extension.
func OutputPath(templatePath string) (string, error) {
	ext := filepath.Ext(templatePath)
	if ext == "" || ext == filepath.Base(templatePath) {
		return "", errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("template %s has no extension to strip", templatePath))
	}
	return strings.TrimSuffix(templatePath, ext), nil
}

// RenderFile renders one template file and returns the output path.
// The output keeps the template's permission bits.
func (r *Renderer) RenderFile(templatePath string, data map[string]interface{}) (string, error) {
	outputPath, err := OutputPath(templatePath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrap(err, ErrCodeFileNotFound,
				fmt.Sprintf("template does not exist: %s", templatePath))
		}
		return "", errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to stat template: %s", templatePath))
	}

	// #nosec G304 -- templates are selected by the caller
	text, err := os.ReadFile(templatePath)
	if err != nil {
		return "", errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to read template: %s", templatePath))
	}

	rendered, err := r.RenderString(filepath.Base(templatePath), string(text), data)
	if err != nil {
		return "", err
	}

	if err := atomic.WriteFile(outputPath, strings.NewReader(rendered)); err != nil {
		return "", errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to write %s", outputPath)).
			WithContext("template", templatePath)
	}
	if err := os.Chmod(outputPath, info.Mode().Perm()); err != nil {
		return "", errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to set permissions on %s", outputPath))
	}

	r.logger.Info().Str("template", templatePath).Str("output", outputPath).Msg("template rendered")
	r.audit.LogTemplateRendered(templatePath, outputPath)

	if !r.options.KeepTemplate {
		if err := os.Remove(templatePath); err != nil {
			return outputPath, errors.Wrap(err, ErrCodeIOError,
				fmt.Sprintf("failed to remove template %s", templatePath))
		}
		r.logger.Debug().Str("template", templatePath).Msg("template removed")
		r.audit.LogTemplateRemoved(templatePath)
	}

	return outputPath, nil
}

// FindTemplates lists the template files under BasePath in lexical order.
func (r *Renderer) FindTemplates() ([]string, error) {
	var templates []string

	err := filepath.WalkDir(r.options.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if r.isTemplate(d.Name()) {
			templates = append(templates, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeIOError,
			fmt.Sprintf("failed to walk %s", r.options.BasePath))
	}

	return templates, nil
}

func (r *Renderer) isTemplate(name string) bool {
	for _, ext := range r.options.Extensions {
		if strings.HasSuffix(name, ext) && name != ext {
			return true
		}
	}
	return false
}

// RenderAll renders every template under BasePath and returns the output
// paths. Templates are collected before the first render, so outputs are
// never picked up as inputs. Rendering stops at the first failure.
func (r *Renderer) RenderAll(data map[string]interface{}) ([]string, error) {
	templates, err := r.FindTemplates()
	if err != nil {
		return nil, err
	}

	outputs := make([]string, 0, len(templates))
	for _, templatePath := range templates {
		output, err := r.RenderFile(templatePath, data)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, output)
	}

	r.logger.Debug().Str("basepath", r.options.BasePath).Int("rendered", len(outputs)).Msg("render pass complete")
	return outputs, nil
}
