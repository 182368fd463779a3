// Benchmark tool for testing FraudShield against labeled transaction data.
//
// Usage:
//
//	go run cmd/benchmark/main.go -csv /path/to/labeled.csv -url http://localhost:8080
//	go run cmd/benchmark/main.go -generate 5000 -url http://localhost:8080
//
// This tool:
//  1. Reads labeled transaction data (or generates a synthetic dataset)
//  2. Strips the label column and uploads the rows in batches to /analyze
//  3. Compares FraudShield's per-row prediction with the held-out labels
//  4. Calculates precision, recall, F1-score, and confusion matrix
//
// The label column is removed before upload so the classifier never sees
// the ground truth it is being measured against.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// uploadHeader is the column layout FraudShield expects, minus the label.
var uploadHeader = []string{
	"Transaction ID",
	"Cardholder Name",
	"Card Number",
	"Card Type",
	"Transaction Amount",
	"Transaction Date and Time",
	"Transaction Currency",
	"Transaction Source",
	"Transaction Notes",
}

// labeledRow is one dataset row with the ground-truth label held out.
type labeledRow struct {
	Fields  []string // column values in uploadHeader order
	IsFraud bool
}

// analyzeResponse is the subset of the /analyze report the benchmark reads.
type analyzeResponse struct {
	ReportID           string  `json:"reportId"`
	TotalTransactions  int     `json:"totalTransactions"`
	FraudCount         int     `json:"fraudCount"`
	FraudPercentage    float64 `json:"fraudPercentage"`
	TransactionResults []struct {
		Transaction map[string]string `json:"transaction"`
		Prediction  int               `json:"prediction"`
		RiskScore   float64           `json:"riskScore"`
		FraudType   string            `json:"fraudType"`
	} `json:"transactionResults"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Fraud predicted as fraud
	FalsePositives int64 // Non-fraud predicted as fraud
	TrueNegatives  int64 // Non-fraud predicted as legitimate
	FalseNegatives int64 // Fraud predicted as legitimate (missed fraud!)

	TotalProcessed int64
	TotalFraud     int64
	TotalNonFraud  int64
	TotalErrors    int64

	ProcessingTimeMs int64
	BatchesUploaded  int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled FraudShield CSV file")
	generate := flag.Int("generate", 0, "Generate N synthetic transactions instead of reading a CSV")
	baseURL := flag.String("url", "http://localhost:8080", "FraudShield base URL")
	limit := flag.Int("limit", 10000, "Maximum transactions to process (0 = all)")
	batchSize := flag.Int("batch", 200, "Transactions per upload")
	workers := flag.Int("workers", 4, "Number of concurrent upload workers")
	threshold := flag.Float64("threshold", 0.5, "Detection threshold sent with each upload")
	fraudOnly := flag.Bool("fraud-only", false, "Only test fraud transactions")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for non-fraud (0.0-1.0)")
	seed := flag.Int64("seed", 42, "Seed for synthetic data generation")
	verbose := flag.Bool("verbose", false, "Print each transaction result")
	flag.Parse()

	if *csvPath == "" && *generate == 0 {
		fmt.Println("Usage: benchmark -csv /path/to/labeled.csv [-url http://localhost:8080]")
		fmt.Println("   or: benchmark -generate 5000 [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        FRAUDSHIELD BENCHMARK - Labeled Fraud Detection        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	if *csvPath != "" {
		fmt.Printf("\nCSV File:        %s\n", *csvPath)
	} else {
		fmt.Printf("\nSynthetic Rows:  %d (seed %d)\n", *generate, *seed)
	}
	fmt.Printf("FraudShield URL: %s\n", *baseURL)
	fmt.Printf("Workers:         %d\n", *workers)
	fmt.Printf("Batch Size:      %d\n", *batchSize)
	fmt.Printf("Threshold:       %.2f\n", *threshold)
	fmt.Printf("Limit:           %d\n", *limit)
	fmt.Printf("Fraud Only:      %v\n", *fraudOnly)
	fmt.Printf("Sample Rate:     %.2f\n", *sampleRate)
	fmt.Println()

	// Check FraudShield is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: FraudShield not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure FraudShield is running:")
		fmt.Println("  go run cmd/fraudshield/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ FraudShield is healthy")

	// Load dataset
	var rows []labeledRow
	var err error
	if *csvPath != "" {
		fmt.Printf("\nReading labeled data from %s...\n", *csvPath)
		rows, err = readLabeledCSV(*csvPath, *limit, *fraudOnly, *sampleRate)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("\nGenerating %d synthetic transactions...\n", *generate)
		rows = generateDataset(*generate, *seed)
		if *limit > 0 && len(rows) > *limit {
			rows = rows[:*limit]
		}
	}
	fmt.Printf("✓ Loaded %d transactions\n", len(rows))
	if len(rows) == 0 {
		fmt.Println("ERROR: No transactions to benchmark")
		os.Exit(1)
	}

	// Count fraud vs non-fraud
	fraudCount := 0
	for _, row := range rows {
		if row.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:     %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(rows)))
	fmt.Printf("  - Non-fraud: %d (%.2f%%)\n", len(rows)-fraudCount, 100*float64(len(rows)-fraudCount)/float64(len(rows)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rows, *baseURL, *threshold, *batchSize, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readLabeledCSV(path string, limit int, fraudOnly bool, sampleRate float64) ([]labeledRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	labelIdx, ok := colIndex["fraud flag or label"]
	if !ok {
		return nil, fmt.Errorf("CSV has no %q column", "Fraud Flag or Label")
	}

	get := func(record []string, col string) string {
		idx, ok := colIndex[strings.ToLower(col)]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []labeledRow
	sampleCounter := 0
	rowNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		rowNum++

		label := ""
		if labelIdx < len(record) {
			label = strings.TrimSpace(record[labelIdx])
		}
		isFraud := label == "1" || strings.EqualFold(label, "true") || strings.EqualFold(label, "fraud")

		// Apply filters
		if fraudOnly && !isFraud {
			continue
		}

		// Sample non-fraud transactions
		if !isFraud && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		id := get(record, "Transaction ID")
		if id == "" {
			id = fmt.Sprintf("bench-%06d", rowNum)
		}

		rows = append(rows, labeledRow{
			Fields: []string{
				id,
				get(record, "Cardholder Name"),
				get(record, "Card Number"),
				get(record, "Card Type"),
				get(record, "Transaction Amount"),
				get(record, "Transaction Date and Time"),
				get(record, "Transaction Currency"),
				get(record, "Transaction Source"),
				get(record, "Transaction Notes"),
			},
			IsFraud: isFraud,
		})

		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

// generateDataset builds a synthetic labeled dataset with roughly 15% fraud.
// Fraud rows carry the signals the rule set looks for so the benchmark
// exercises the full scoring path rather than a fixed answer key.
func generateDataset(n int, seed int64) []labeledRow {
	rng := rand.New(rand.NewSource(seed))

	cardTypes := []string{"Visa", "MasterCard", "Amex", "JCB", "Interac"}
	currencies := []string{"USD", "USD", "USD", "EUR", "CAD", "JPY"}
	sources := []string{"in-store", "in-store", "online", "mobile", "atm"}
	names := []string{"Alice Hart", "Bob Chen", "Carol Diaz", "Dan Okafor", "Eve Larsen"}

	rows := make([]labeledRow, 0, n)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < n; i++ {
		isFraud := rng.Float64() < 0.15

		amount := 20 + rng.Float64()*400
		source := sources[rng.Intn(len(sources))]
		notes := "routine purchase"
		hour := 9 + rng.Intn(10)

		if isFraud {
			// Mix of fraud signatures: large amounts, suspicious notes,
			// and late-night online activity.
			switch rng.Intn(3) {
			case 0:
				amount = 5500 + rng.Float64()*9000
				notes = "large transfer"
			case 1:
				notes = "suspicious merchant pattern"
			case 2:
				amount = 4000 + rng.Float64()*3000
				source = "online"
				hour = rng.Intn(5)
			}
		}

		ts := base.Add(time.Duration(i) * time.Minute)
		ts = time.Date(ts.Year(), ts.Month(), ts.Day(), hour, ts.Minute(), 0, 0, time.UTC)

		rows = append(rows, labeledRow{
			Fields: []string{
				fmt.Sprintf("bench-%06d", i+1),
				names[rng.Intn(len(names))],
				fmt.Sprintf("4%015d", rng.Int63n(1e15)),
				cardTypes[rng.Intn(len(cardTypes))],
				strconv.FormatFloat(amount, 'f', 2, 64),
				ts.Format("2006-01-02 15:04:05"),
				currencies[rng.Intn(len(currencies))],
				source,
				notes,
			},
			IsFraud: isFraud,
		})
	}

	return rows
}

func runBenchmark(rows []labeledRow, baseURL string, threshold float64, batchSize, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	if batchSize < 1 {
		batchSize = 1
	}

	// Create work channel of batches
	work := make(chan []labeledRow, numWorkers)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 60 * time.Second}

			for batch := range work {
				start := time.Now()
				report, err := uploadBatch(client, baseURL, threshold, batch)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.BatchesUploaded, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, int64(len(batch)))
					if verbose {
						fmt.Printf("ERROR: batch of %d -> %v\n", len(batch), err)
					}
					continue
				}
				if len(report.TransactionResults) != len(batch) {
					atomic.AddInt64(&metrics.TotalErrors, int64(len(batch)))
					if verbose {
						fmt.Printf("ERROR: sent %d rows, got %d results\n", len(batch), len(report.TransactionResults))
					}
					continue
				}

				for j, row := range batch {
					result := report.TransactionResults[j]
					atomic.AddInt64(&metrics.TotalProcessed, 1)

					// Track actual labels
					if row.IsFraud {
						atomic.AddInt64(&metrics.TotalFraud, 1)
					} else {
						atomic.AddInt64(&metrics.TotalNonFraud, 1)
					}

					// Calculate confusion matrix
					predicted := result.Prediction == 1
					actual := row.IsFraud

					if predicted && actual {
						atomic.AddInt64(&metrics.TruePositives, 1)
					} else if predicted && !actual {
						atomic.AddInt64(&metrics.FalsePositives, 1)
					} else if !predicted && !actual {
						atomic.AddInt64(&metrics.TrueNegatives, 1)
					} else { // !predicted && actual
						atomic.AddInt64(&metrics.FalseNegatives, 1)
					}

					if verbose {
						status := "✓"
						if predicted != actual {
							status = "✗"
						}
						fmt.Printf("%s %-12s | Amount: $%10s | Fraud: %-5v | Predicted: %d (%.1f) | Type: %s\n",
							status,
							row.Fields[0],
							row.Fields[4],
							row.IsFraud,
							result.Prediction,
							result.RiskScore,
							result.FraudType,
						)
					}
				}
			}
		}()
	}

	// Send work in batches
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		work <- rows[start:end]
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func uploadBatch(client *http.Client, baseURL string, threshold float64, batch []labeledRow) (*analyzeResponse, error) {
	// Rebuild the CSV without the label column
	var csvBuf bytes.Buffer
	writer := csv.NewWriter(&csvBuf)
	if err := writer.Write(uploadHeader); err != nil {
		return nil, err
	}
	for _, row := range batch {
		if err := writer.Write(row.Fields); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	// Build the multipart upload
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "benchmark.csv")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(csvBuf.Bytes()); err != nil {
		return nil, err
	}
	if err := form.WriteField("detectionThreshold", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/analyze", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var report analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}

	return &report, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Non-Fraud:  %d\n", m.TotalNonFraud)
	fmt.Printf("   Batches:          %d\n", m.BatchesUploaded)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   Fraud       Legit")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  F  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("          NF  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged rows, how many were actual fraud)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalFraud > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalFraud) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalFraud) * 100
		fmt.Printf("   Fraud Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalFraud, detectionRate)
		fmt.Printf("   Fraud Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalFraud, missRate)
	}
	if m.TotalNonFraud > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonFraud) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonFraud, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Throughput:       %.2f tx/sec\n", tps)
	}
	if m.BatchesUploaded > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.BatchesUploaded)
		fmt.Printf("   Avg Batch Time:   %.2f ms\n", avgMs)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most fraud")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some fraud")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant fraud being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most fraud is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - alerts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
