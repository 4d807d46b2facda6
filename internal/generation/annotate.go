package generation

import (
	"strings"

	"github.com/google/uuid"
)

// BuildRegenerationRequest turns a prior generation plus a set of annotations
// into a fresh request whose prompt instructs the model to apply only the
// requested modifications. The prior response rides along as a fenced
// reference block so the model regenerates against what it actually produced.
func BuildRegenerationRequest(base GenerationRequest, priorPrompt, priorResponse string, priorRecordID *uuid.UUID, annotations []Annotation) (GenerationRequest, *StageError) {
	if strings.TrimSpace(priorResponse) == "" {
		return GenerationRequest{}, newStageError(stageMain, ErrPrecondition,
			"cannot regenerate: no prior response to annotate", nil)
	}
	if strings.TrimSpace(priorPrompt) == "" {
		return GenerationRequest{}, newStageError(stageMain, ErrPrecondition,
			"cannot regenerate: the prior prompt is empty", nil)
	}

	req := base
	req.PriorPrompt = priorPrompt
	req.PriorResponse = priorResponse
	req.PriorRecordID = priorRecordID
	req.Annotations = annotations
	req.UserPrompt = priorPrompt + "\n\n" + regenerationBlock(priorResponse, annotations)
	return req, nil
}

func regenerationBlock(priorResponse string, annotations []Annotation) string {
	var b strings.Builder
	b.WriteString("Apply the following requested modifications to your previous response:\n")
	for _, a := range annotations {
		label := a.SchemaLabel
		if label == "" {
			label = a.SchemaID
		}
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString(":\n")
		for _, item := range a.Items {
			b.WriteString("- ")
			b.WriteString(item.Label)
			if item.ID != "" {
				b.WriteString(" [")
				b.WriteString(item.ID)
				b.WriteString("]")
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nYour previous response, for reference:\n")
	b.WriteString("```\n")
	b.WriteString(strings.TrimRight(priorResponse, "\n"))
	b.WriteString("\n```\n\n")
	b.WriteString("Apply only the modifications listed above. Keep everything else, ")
	b.WriteString("including the output shape and format, exactly as it was.")
	return b.String()
}
