package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

var (
	batchWorkers int
	batchLimit   int
)

// batchCmd computes levies for every row of a CSV file.
var batchCmd = &cobra.Command{
	Use:   "batch <file.csv>",
	Short: "Compute levies for a CSV of businesses",
	Long: `Read a CSV file with the columns municipality, activity and revenue
(header required, any order, extra columns ignored) and compute the levy of
every row with a pool of workers. A summary with the number of successes,
unknown names, invalid rows and the total levy is printed at the end.

Examples:
  levyctl batch businesses.csv
  levyctl batch --workers 20 --limit 1000 businesses.csv
  levyctl --server http://localhost:8080 batch -v businesses.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 10, "number of concurrent workers")
	batchCmd.Flags().IntVarP(&batchLimit, "limit", "l", 0, "maximum rows to process (0 = all)")
}

// batchRow is one parsed CSV line.
type batchRow struct {
	Line    int
	Request domain.LevyRequest
}

// batchSummary tracks batch results.
type batchSummary struct {
	Processed int64
	Succeeded int64
	NotFound  int64
	Invalid   int64
	Errors    int64
	Skipped   int

	mu        sync.Mutex
	TotalLevy decimal.Decimal
}

func (s *batchSummary) addLevy(v float64) {
	s.mu.Lock()
	s.TotalLevy = s.TotalLevy.Add(decimal.NewFromFloat(v).Round(2))
	s.mu.Unlock()
}

func runBatch(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	rows, skipped, err := readBatchCSV(file, batchLimit)
	if err != nil {
		return err
	}

	b, err := newBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processing %d rows with %d workers...\n", len(rows), batchWorkers)

	start := time.Now()
	summary := runRows(cmd.Context(), b, rows, batchWorkers, out)
	summary.Skipped = skipped

	printSummary(out, summary, time.Since(start))

	if summary.Succeeded == 0 && len(rows) > 0 {
		return errors.New("no row could be computed")
	}
	return nil
}

// readBatchCSV parses the rows of r. Rows with a missing field or an
// unparsable revenue are counted as skipped.
func readBatchCSV(r io.Reader, limit int) ([]batchRow, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"municipality", "activity", "revenue"} {
		if _, ok := colIndex[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []batchRow
	skipped := 0
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			skipped++
			continue
		}

		field := func(name string) string {
			i := colIndex[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		municipality, activity := field("municipality"), field("activity")
		revenue, err := strconv.ParseFloat(field("revenue"), 64)
		if municipality == "" || activity == "" || err != nil {
			skipped++
			continue
		}

		rows = append(rows, batchRow{
			Line: line,
			Request: domain.LevyRequest{
				MunicipalityName:   municipality,
				BusinessActivity:   activity,
				RevenueTwoYearsAgo: revenue,
			},
		})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, skipped, nil
}

func runRows(ctx context.Context, b backend, rows []batchRow, numWorkers int, out io.Writer) *batchSummary {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	summary := &batchSummary{}

	work := make(chan batchRow, 100)
	var wg sync.WaitGroup
	var outMu sync.Mutex

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for row := range work {
				resp, err := b.Calculate(ctx, row.Request)
				atomic.AddInt64(&summary.Processed, 1)

				if err != nil {
					switch {
					case errors.Is(err, domain.ErrNotFound):
						atomic.AddInt64(&summary.NotFound, 1)
					case errors.Is(err, domain.ErrInvalidArgument):
						atomic.AddInt64(&summary.Invalid, 1)
					default:
						atomic.AddInt64(&summary.Errors, 1)
					}
					if verbose {
						outMu.Lock()
						fmt.Fprintf(out, "✗ line %d: %v\n", row.Line, err)
						outMu.Unlock()
					}
					continue
				}

				atomic.AddInt64(&summary.Succeeded, 1)
				summary.addLevy(resp.FinalLevy)

				if verbose {
					outMu.Lock()
					fmt.Fprintf(out, "✓ line %d: %-30s | %-30s | %s/%d | %s\n",
						row.Line,
						row.Request.MunicipalityName,
						row.Request.BusinessActivity,
						resp.MunicipalityClass,
						resp.ContributionGroup,
						euro(resp.FinalLevy),
					)
					outMu.Unlock()
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)

	wg.Wait()

	return summary
}

func printSummary(out io.Writer, s *batchSummary, duration time.Duration) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "BATCH RESULTS")
	fmt.Fprintf(out, "   Processed:  %d\n", s.Processed)
	fmt.Fprintf(out, "   Succeeded:  %d\n", s.Succeeded)
	fmt.Fprintf(out, "   Not found:  %d\n", s.NotFound)
	fmt.Fprintf(out, "   Invalid:    %d\n", s.Invalid)
	fmt.Fprintf(out, "   Errors:     %d\n", s.Errors)
	fmt.Fprintf(out, "   Skipped:    %d\n", s.Skipped)
	fmt.Fprintf(out, "   Total levy: %s EUR\n", s.TotalLevy.StringFixed(2))
	fmt.Fprintf(out, "   Duration:   %s\n", duration.Round(time.Millisecond))
	if s.Processed > 0 && duration > 0 {
		fmt.Fprintf(out, "   Throughput: %.1f rows/s\n", float64(s.Processed)/duration.Seconds())
	}
}
