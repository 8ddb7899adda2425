package dupcheck

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidBulkRow = errors.New("invalid_bulk_row")

// NormalizePhone strips non-digits and canonicalizes the Ghana country
// prefix to local format (0XXXXXXXXX), so "+233 24 123 4567" and
// "0241234567" compare equal.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	phone := digits.String()
	if strings.HasPrefix(phone, "233") && len(phone) == 12 {
		return "0" + phone[3:]
	}
	if len(phone) == 9 && !strings.HasPrefix(phone, "0") {
		return "0" + phone
	}
	return phone
}

// BulkItem is one parsed row of a bulk submission ("phone,volumeUNIT").
type BulkItem struct {
	Raw      string
	Phone    string
	VolumeMB int64
}

// ParseBulkRow parses a "phone,volumeUNIT" row such as "0241234567,5GB".
func ParseBulkRow(row string) (BulkItem, error) {
	parts := strings.SplitN(strings.TrimSpace(row), ",", 2)
	if len(parts) != 2 {
		return BulkItem{}, fmt.Errorf("%w: %q", ErrInvalidBulkRow, row)
	}
	phone := NormalizePhone(parts[0])
	if phone == "" {
		return BulkItem{}, fmt.Errorf("%w: missing phone in %q", ErrInvalidBulkRow, row)
	}
	volume, err := parseVolumeMB(parts[1])
	if err != nil {
		return BulkItem{}, fmt.Errorf("%w: %q: %v", ErrInvalidBulkRow, row, err)
	}
	return BulkItem{Raw: row, Phone: phone, VolumeMB: volume}, nil
}

func parseVolumeMB(raw string) (int64, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	unit := int64(1)
	switch {
	case strings.HasSuffix(value, "GB"):
		unit = 1024
		value = strings.TrimSuffix(value, "GB")
	case strings.HasSuffix(value, "MB"):
		value = strings.TrimSuffix(value, "MB")
	default:
		return 0, fmt.Errorf("unknown volume unit in %q", raw)
	}
	qty, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || qty <= 0 {
		return 0, fmt.Errorf("invalid volume %q", raw)
	}
	return int64(qty * float64(unit)), nil
}
