package extractor

// BuildExtractionPrompt returns the prompt asking the model for per-page
// field and table observations with confidences and bounding boxes.
func BuildExtractionPrompt(documentType string) string {
	return `You are a document data extraction assistant. Analyze the provided ` + documentType + ` document and report every labeled field and every table you observe, page by page.

IMPORTANT INSTRUCTIONS:
- Report observations per physical page. Do not merge or reconcile values across pages; downstream code does that.
- Report every field you can read, even when the same label appears on several pages with different values.
- For tables, report every cell with its zero-based row and column position. Mark header cells with "isHeader": true. Use rowspan/colspan greater than 1 for merged cells.
- Bounding boxes are normalized to the page: x, y, width, height all in [0, 1].
- Confidence values are between 0.0 and 1.0. Report low confidence rather than guessing.

Return ONLY valid JSON with no markdown formatting, no code fences, no explanation.

The JSON must be an object with a single top-level key "pages", an array where each element follows this schema:
{
  "pageNumber": 1,
  "fields": [
    {
      "name": "", "value": "", "fieldType": "text",
      "confidence": 0.0, "page": 1,
      "bbox": {"x": 0, "y": 0, "width": 0, "height": 0}
    }
  ],
  "tables": [
    {
      "page": 1, "title": "", "confidence": 0.0,
      "bbox": {"x": 0, "y": 0, "width": 0, "height": 0},
      "cells": [
        {
          "row": 0, "column": 0, "content": "",
          "isHeader": false, "rowspan": 1, "colspan": 1,
          "confidence": 0.0
        }
      ]
    }
  ]
}

If a page has no fields or tables, return empty arrays for them. Never omit a page.`
}
