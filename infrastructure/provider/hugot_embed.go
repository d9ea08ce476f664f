//go:build embed_model

package provider

import "embed"

// embeddedModelFS holds the model fetched by tools/download-model.
//
//go:embed all:models
var embeddedModelFS embed.FS

const hasEmbeddedModel = true
