package clone

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/chartsync/internal/diagram"
)

// DomainFingerprint is the hash domain for diagram content fingerprints.
// The version suffix changes whenever the canonical form changes.
const DomainFingerprint = "chartsync/fingerprint/v1"

// Fingerprint returns a content hash of d that is independent of child ids
// and of the root timestamps a clone touches. Two diagrams with the same
// root id and the same content in the same order share a fingerprint.
//
// The canonical form is a preserve-root clone with sequential child ids and
// a zero clock, encoded as JSON and NFC-normalized.
func Fingerprint(d *diagram.Diagram) (string, error) {
	res, err := Clone(d, PreserveRoot,
		WithIDGenerator(NewSequentialGenerator()),
		WithNow(func() time.Time { return time.UnixMilli(0) }),
	)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	data, err := json.Marshal(res.Diagram)
	if err != nil {
		return "", fmt.Errorf("fingerprint: marshal: %w", err)
	}

	return hashWithDomain(DomainFingerprint, norm.NFC.Bytes(data)), nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
