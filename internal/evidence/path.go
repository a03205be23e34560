// Package evidence manages photographic evidence: storage path grammar,
// the transactional day-batch replace protocol, and signed URL resolution.
package evidence

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"sporelab/pkg/domain"
)

// Photo keys follow {ownerID}/{testID}/day{7|14}_photo{number}_{stamp}.{ext}
// with a 1-based photo number. Both IDs are UUIDs, so the grammar doubles as
// an ownership check: a path that parses but names a different owner or test
// is rejected. Derived mosaics use the same grammar, numbered after the
// singles they are built from.
var photoNameRe = regexp.MustCompile(`(?i)^day(7|14)_photo[1-9]\d*_\d+\.(jpg|jpeg|png|webp)$`)

// BuildPhotoPath derives the storage key for a photo. number is the 1-based
// photo number within the test and day.
func BuildPhotoPath(ownerID, testID string, day domain.CheckDay, number int, stamp int64) string {
	return fmt.Sprintf("%s/%s/day%d_photo%d_%d.jpg", ownerID, testID, day, number, stamp)
}

// ValidatePhotoPath checks that path is a well-formed photo key bound to the
// given owner and test. UUID comparison is case-insensitive; traversal
// sequences and absolute paths are rejected outright.
func ValidatePhotoPath(path, ownerID, testID string) error {
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("photo path %q is absolute", path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("photo path %q contains traversal", path)
	}
	parts := strings.Split(path, "/")
	if len(parts) != 3 {
		return fmt.Errorf("photo path %q must have owner/test/filename segments", path)
	}
	pathOwner, pathTest, name := parts[0], parts[1], parts[2]
	if _, err := uuid.Parse(pathOwner); err != nil {
		return fmt.Errorf("photo path owner segment %q is not a UUID: %w", pathOwner, err)
	}
	if _, err := uuid.Parse(pathTest); err != nil {
		return fmt.Errorf("photo path test segment %q is not a UUID: %w", pathTest, err)
	}
	if !strings.EqualFold(pathOwner, ownerID) {
		return fmt.Errorf("photo path owner %s does not match %s", pathOwner, ownerID)
	}
	if !strings.EqualFold(pathTest, testID) {
		return fmt.Errorf("photo path test %s does not match %s", pathTest, testID)
	}
	if !photoNameRe.MatchString(name) {
		return fmt.Errorf("photo file name %q does not match the day/slot grammar", name)
	}
	return nil
}
