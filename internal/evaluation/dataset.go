package evaluation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineSize вмещает строку с 478 точками с запасом
const maxLineSize = 1 << 20

// LoadDataset читает набор в формате JSON Lines. maxPerClass > 0 ограничивает
// число кадров каждого класса, порядок внутри класса сохраняется.
// Сонливые кадры идут первыми.
func LoadDataset(r io.Reader, maxPerClass int) ([]Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var drowsy, alert []Sample
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var s Sample
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if s.Label {
			if maxPerClass <= 0 || len(drowsy) < maxPerClass {
				drowsy = append(drowsy, s)
			}
		} else if maxPerClass <= 0 || len(alert) < maxPerClass {
			alert = append(alert, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	return append(drowsy, alert...), nil
}

// LoadDatasetFile открывает файл и читает набор
func LoadDatasetFile(path string, maxPerClass int) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return LoadDataset(f, maxPerClass)
}
