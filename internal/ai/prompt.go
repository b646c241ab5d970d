package ai

import (
	"github.com/lojasmm/sqldash/internal/config"
)

// analysisPrompt appends the visualization catalog to the analysis
// instructions so the model only proposes charts the renderer knows.
func analysisPrompt(instr config.Instructions) string {
	return instr.Analysis + "\nVisualization types: " + string(instr.VisualizationTypes)
}
