package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// dumpRawOutput writes an unparseable model response to the artifact
// directory so the prompt can be debugged against the real output.
func (s *Service) dumpRawOutput(jobID, workflow, raw string) (string, error) {
	dir := s.cfg.ArtifactDir
	if dir == "" {
		dir = "artifacts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s_%s.txt", time.Now().UTC().Format("20060102T150405"), jobID, workflow)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
