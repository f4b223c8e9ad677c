package ai

import (
	"fmt"
	"strings"

	"github.com/docuvec/docuvec/internal/document"
)

// metadataPrompt builds the classification prompt for a cleaned text prefix.
// The model must answer with a bare JSON object; categories outside the
// closed list are rejected downstream and replaced with the fallback.
func metadataPrompt(text string) string {
	return fmt.Sprintf(`Eres un asistente experto en la clasificación de documentos administrativos. Tu tarea es leer el siguiente texto extraído de un documento y devolver ÚNICAMENTE un objeto JSON, sin marcadores de código ni texto adicional.

CATEGORÍAS PERMITIDAS (SOLO estas %d):
%s

PROHIBIDO crear nuevas categorías. Si no puedes clasificar con certeza en las primeras %d categorías, usa %q.

El objeto JSON debe tener la siguiente estructura exacta:
{
  "doc_type": "String (SOLO una de las categorías listadas arriba)",
  "topic": "String (Un título corto y descriptivo del contenido)",
  "doc_date": "String (Formato YYYY-MM-DD, si se encuentra)",
  "entities": ["Array de strings (Nombres de personas, oficinas o instituciones mencionadas)"],
  "summary": "String (Un resumen de 2 frases del propósito del documento)"
}

Si un campo no se puede determinar, devuelve null para ese campo.

Texto del documento para analizar:
---
%s
---`,
		len(document.Categories),
		"- "+strings.Join(document.Categories, "\n- "),
		len(document.Categories)-1,
		document.CategoryOther,
		text)
}
