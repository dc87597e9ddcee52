// Package morpheus loads structured data from files and URLs and renders
// templates with it.
//
// # Data formats
//
// Four formats are understood: INI, JSON, YAML and env-style KEY=VALUE
// declarations. Every parser produces the same shape, a string-keyed map:
//
//   - INI: one entry per section, each a map of string options. [DEFAULT]
//     values are inherited by every section and %(name)s references are
//     expanded. Option names keep their case.
//   - JSON and YAML: the top-level value must be a mapping.
//   - Env: one declaration per line, backslash escapes decoded, split on the
//     first "=".
//
// # Detection
//
// When no format is declared, the file extension (or the Content-Type of a
// remote response) provides a hint. A hint is authoritative: the hinted
// parser runs alone and its error is returned as is. Without a hint each
// parser is tried in a fixed order, INI, JSON, Env, then YAML, and the first
// success wins:
//
//	format, data, err := morpheus.DetectAndParse([]byte("name=demo\n"))
//	// format == morpheus.FormatEnv, data["name"] == "demo"
//
// Only syntax mismatches move detection to the next candidate. When every
// candidate fails the error carries ErrCodeUnrecognizedFormat.
//
// # Sources
//
// FileSource and URLSource implement Source. Format tokens are validated
// when a source is created, before any I/O happens:
//
//	values, err := morpheus.ParseFile("settings.ini", "")
//	remote, err := morpheus.ParseURL(ctx, "https://example.com/values", "yaml", nil)
//
// URL sources use a bounded timeout and a bounded retry policy
// (RemoteOptions). Transport failures, timeouts and non-2xx statuses are
// I/O errors, never format errors.
//
// # Rendering
//
// A DataContext accumulates data from variables, JSON sections, context
// files, data files and URLs. A Renderer walks a base path and renders every
// "*.j2" template with text/template, writing "name.ext.j2" to "name.ext":
//
//	data := morpheus.NewDataContext(morpheus.EnvironSnapshot(os.Environ()))
//	_ = data.AddVariables("greeting=hello")
//	renderer, _ := morpheus.NewRenderer(morpheus.RenderOptions{BasePath: "deploy"},
//		morpheus.WithEnvironment(data.Env()))
//	outputs, err := renderer.RenderAll(data.Data())
//
// Templates can call b64encode and environ, and see the environment
// snapshot under .env.
//
// # Errors
//
// Errors are github.com/agilira/go-errors values with a MORPHEUS_* code.
// IsConfigError, IsParseError and IsIOError group the codes into the three
// kinds callers usually branch on.
//
// # Command line
//
// cmd/morpheus provides the interactive CLI (render, parse, detect, convert,
// validate, watch, audit, info). cmd/entrypoint is the single-shot CI action
// configured through flags or INPUT_* variables.
package morpheus
