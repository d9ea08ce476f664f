package api

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"
)

// swagger.json follows the handler annotations in v1. It is a template in
// the format swag generates, rendered by swag.Spec.
//
//go:embed swagger.json
var swaggerTemplate string

// SwaggerInfo describes the API. Host is replaced per request.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Vidchat API",
	Description:      "Chat with YouTube videos through their transcripts",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// SwaggerUIHTML returns the Swagger UI page for the spec at specURL.
func SwaggerUIHTML(specURL string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Vidchat API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>
        html { box-sizing: border-box; overflow-y: scroll; }
        *, *:before, *:after { box-sizing: inherit; }
        body { margin:0; background: #fafafa; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" charset="UTF-8"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-standalone-preset.js" charset="UTF-8"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "` + specURL + `",
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
                layout: "StandaloneLayout"
            });
        };
    </script>
</body>
</html>`
}

// DocsRouter serves Swagger UI and the API description.
type DocsRouter struct {
	specURL string
}

// NewDocsRouter creates a DocsRouter whose UI loads the spec from specURL.
func NewDocsRouter(specURL string) *DocsRouter {
	return &DocsRouter{specURL: specURL}
}

// Routes returns the chi router for documentation endpoints.
func (d *DocsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(SwaggerUIHTML(d.specURL)))
	})

	// The host is taken from the request so "Try it out" works behind
	// any hostname or proxy.
	router.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		spec := *SwaggerInfo
		spec.Host = r.Host
		if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
			spec.Host = forwarded
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(spec.ReadDoc()))
	})

	return router
}
