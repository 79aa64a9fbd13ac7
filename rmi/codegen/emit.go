package codegen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/rmi-trainer/rmi/rmi"
)

// EmitToDisk generates namespace ns's lookup code for trained and writes
// the three source artifacts ({ns}.cpp, {ns}.h, {ns}_data.h) into outDir
// and every non-constant layer's parameter blob into dataDir, matching
// the reference implementation's output_rmi/generate_code on-disk layout.
func EmitToDisk(outDir, dataDir, ns string, trained *rmi.TrainedRMI, buildTimeNS uint64, keyType rmi.KeyType, includeErrors bool) error {
	gen, err := Generate(ns, trained, buildTimeNS, keyType, includeErrors)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("codegen: create output dir %q: %w", outDir, err)
	}
	if len(gen.Blobs) > 0 {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("codegen: create data dir %q: %w", dataDir, err)
		}
	}

	files := map[string]string{
		ns + ".cpp":      gen.CPP,
		ns + ".h":        gen.Header,
		ns + "_data.h":   gen.DataH,
	}
	for name, content := range files {
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("codegen: write %q: %w", path, err)
		}
	}

	for name, blob := range gen.Blobs {
		path := filepath.Join(dataDir, name)
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return fmt.Errorf("codegen: write parameter blob %q: %w", path, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"namespace": ns, "out_dir": outDir, "data_dir": dataDir, "blobs": len(gen.Blobs),
	}).Info("emitted RMI lookup code")
	return nil
}
