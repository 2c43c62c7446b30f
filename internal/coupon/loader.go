package coupon

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"race-kart/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fieldSeparator splits the columns of a coupon line:
//
//	CODE;TYPE;VALUE;MAX_USES[;EXPIRES_AT]
//
// TYPE is percent or fixed, an empty or zero MAX_USES means unlimited and
// EXPIRES_AT is RFC 3339 or YYYY-MM-DD. Lines starting with # are comments.
const fieldSeparator = ";"

// fileLoader implements Loader for reading gzipped coupon files.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based coupon loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "coupon-loader").Logger(),
	}
}

// Load reads a gzipped coupon file from the local file system.
func (l *fileLoader) Load(ctx context.Context, filePath string) (*Set, error) {
	l.logger.Info().Str("file", filePath).Msg("loading coupon file")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open coupon file")
		return nil, fmt.Errorf("failed to open coupon file %s: %w", filePath, err)
	}
	defer file.Close()

	set, err := readCoupons(ctx, file, filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to read coupon file")
		return nil, err
	}

	l.logger.Info().
		Str("file", filePath).
		Int("coupons_loaded", set.Size()).
		Msg("coupon file loaded successfully")

	return set, nil
}

// readCoupons decompresses r and parses one coupon per line.
func readCoupons(ctx context.Context, r io.Reader, source string) (*Set, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", source, err)
	}
	defer gzipReader.Close()

	set := NewSet(1024)

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		c, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", source, lineNo, err)
		}
		set.Add(c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading coupon file %s: %w", source, err)
	}

	return set, nil
}

// parseLine parses CODE;TYPE;VALUE;MAX_USES[;EXPIRES_AT].
func parseLine(line string) (model.Coupon, error) {
	fields := strings.Split(line, fieldSeparator)
	if len(fields) < 4 || len(fields) > 5 {
		return model.Coupon{}, fmt.Errorf("expected 4 or 5 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	c := model.Coupon{
		SchemaVersion: model.CurrentSchemaVersion,
		Code:          strings.ToUpper(fields[0]),
		DiscountType:  model.DiscountType(strings.ToLower(fields[1])),
		Active:        true,
	}

	value, err := decimal.NewFromString(fields[2])
	if err != nil {
		return model.Coupon{}, fmt.Errorf("invalid discount value %q: %w", fields[2], err)
	}
	if value.IsNegative() || (c.DiscountType == model.DiscountPercent && value.GreaterThan(decimal.NewFromInt(100))) {
		return model.Coupon{}, fmt.Errorf("discount value %s out of range", value)
	}
	c.DiscountValue = value

	if fields[3] != "" {
		maxUses, err := strconv.Atoi(fields[3])
		if err != nil || maxUses < 0 {
			return model.Coupon{}, fmt.Errorf("invalid max uses %q", fields[3])
		}
		if maxUses > 0 {
			c.MaxUses = &maxUses
		}
	}

	if len(fields) == 5 && fields[4] != "" {
		expiresAt, err := parseExpiry(fields[4])
		if err != nil {
			return model.Coupon{}, err
		}
		c.ExpiresAt = &expiresAt
	}

	if err := model.Validate(c); err != nil {
		return model.Coupon{}, err
	}

	return c, nil
}

// parseExpiry accepts RFC 3339 timestamps or dates; a date expires at the end of that day in UTC.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q", s)
	}
	return d.Add(24*time.Hour - time.Nanosecond), nil
}
