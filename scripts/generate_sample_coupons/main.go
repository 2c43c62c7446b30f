package main

import (
	"compress/gzip"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Writes sample coupon files for POST /api/admin/coupons/import.
// Each line is CODE;TYPE;VALUE;MAX_USES[;EXPIRES_AT].
// SHARED15 appears in both files; the import keeps the terms of the last file listed.
func main() {
	dataDir := "data/coupons"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	files := map[string][]string{
		"spring.gz": {
			"# code;type;value;max uses;expires",
			"WELCOME10;percent;10;;",
			"SPRING20;percent;20;200;2027-03-31",
			"SHARED15;percent;15;100;",
			"TEAM50;fixed;50;20;",
		},
		"partners.gz": {
			"PARTNER25;fixed;25;;",
			"SHARED15;percent;15;300;",
			"VIP100;fixed;100;1;",
			"EXPIRED5;fixed;5;;2025-01-01",
		},
	}

	for filename, lines := range files {
		filePath := filepath.Join(dataDir, filename)

		if err := createCouponFile(filePath, lines); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d lines\n", filePath, len(lines))
	}

	fmt.Println("\nImport with:")
	fmt.Println(`  curl -X POST -H "X-API-Key: $API_KEY" -d '{"files":["data/coupons/spring.gz","data/coupons/partners.gz"]}' localhost:8080/api/admin/coupons/import`)
}

func createCouponFile(filePath string, lines []string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintf(gzipWriter, "%s\n", line); err != nil {
			return fmt.Errorf("failed to write coupon: %w", err)
		}
	}

	return nil
}
