package generate

// Built-in export templates. Every template renders from the same canonical
// irDocument, so adding a format is adding a template here or through
// RegisterTemplate, never new pipeline code.

const cssTemplate = `:root {
{{- range .Groups}}
  /* {{.Category}} */
{{- range .Tokens}}
  --{{.Name}}: {{.Value}};
{{- end}}
{{- end}}
}
`

const scssTemplate = `{{range .Groups -}}
// {{.Category}}
{{range .Tokens -}}
${{.Name}}: {{.Value}};
{{end}}
{{end -}}
`

const jsonTemplate = `{{json .Groups}}
`

const tailwindTemplate = `module.exports = {
  theme: {
    extend: {
{{- range .Groups}}
      {{tailwindKey .Category}}: {
{{- range .Tokens}}
        "{{.Name}}": "{{.Value}}",
{{- end}}
      },
{{- end}}
    },
  },
};
`
