// Package features converts raw transaction records into fixed-width
// numeric feature vectors for the classifier. Extraction never fails:
// malformed or missing fields degrade to sentinel defaults so one bad row
// cannot abort a batch.
package features

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// velocityWindow is the trailing window for the transaction velocity count.
const velocityWindow = 24 * time.Hour

// Encoded categorical vocabularies. Unseen values produce all-zero
// indicators; the vector width never changes.
var (
	cardTypes  = []string{"visa", "mastercard", "amex", "discover", "jcb"}
	sources    = []string{"online", "mobile", "pos", "in-store"}
	currencies = []string{"USD", "EUR", "GBP", "JPY", "CAD"}
)

// featureNames is the fixed output schema, in vector order. The trained
// model artifact validates its own feature list against this scheme.
var featureNames = buildFeatureNames()

func buildFeatureNames() []string {
	names := []string{
		"amount",
		"hour",
		"day_of_week",
		"prev_tx_count",
		"response_code",
		"mcc",
		"location_numeric",
		"hours_since_last",
		"tx_frequency",
		"velocity_24h",
		"avg_amount",
		"amount_variance",
		"amount_to_frequency",
	}
	for _, c := range cardTypes {
		names = append(names, "card_"+strings.ReplaceAll(c, "-", "_"))
	}
	for _, s := range sources {
		names = append(names, "source_"+strings.ReplaceAll(s, "-", "_"))
	}
	for _, c := range currencies {
		names = append(names, "currency_"+strings.ToLower(c))
	}
	return names
}

// FeatureNames returns the fixed feature schema in vector order.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// Width returns the feature vector width.
func Width() int {
	return len(featureNames)
}

// Extract builds the feature vector for one record given the cardholder's
// history of strictly earlier records. The history is not modified.
func Extract(tx *domain.Transaction, h *History) domain.FeatureVector {
	if h == nil {
		h = NewHistory()
	}

	v := make(domain.FeatureVector, 0, len(featureNames))

	amount := tx.Amount()
	ts, tsOK := tx.Timestamp()

	hour, dow := 0.0, 0.0
	if tsOK {
		hour = float64(ts.Hour())
		dow = float64(ts.Weekday())
	}

	sinceLast := 0.0
	velocity := 0.0
	if tsOK {
		sinceLast = h.HoursSinceLast(ts)
		velocity = float64(h.CountWithin(ts.Add(-velocityWindow))) + 1
	}

	frequency := float64(h.Count() + 1)

	v = append(v,
		amount,
		hour,
		dow,
		float64(tx.Int(domain.ColPrevTxCount)),
		tx.Float(domain.ColResponseCode),
		tx.Float(domain.ColMCC),
		locationNumeric(tx.Get(domain.ColLocation)),
		sinceLast,
		frequency,
		velocity,
		h.MeanWith(amount),
		h.VarianceWith(amount),
		amount/frequency,
	)

	v = appendIndicators(v, normalizeCardType(tx.CardType()), cardTypes)
	v = appendIndicators(v, tx.Source(), sources)
	v = appendIndicators(v, tx.Currency(), currencies)

	return v
}

// ExtractBatch extracts one vector per record, preserving input order.
// Per-cardholder aggregates walk each cardholder's records in timestamp
// order regardless of their position in the upload.
func ExtractBatch(records []*domain.Transaction) []domain.FeatureVector {
	out := make([]domain.FeatureVector, len(records))

	// Group record indices by cardholder. Records without a cardholder get
	// a singleton history keyed by their own position.
	groups := make(map[string][]int)
	for i, tx := range records {
		key := tx.Cardholder()
		if key == "" {
			key = "\x00anon:" + strconv.Itoa(i)
		}
		groups[key] = append(groups[key], i)
	}

	for _, idxs := range groups {
		// Stable sort by timestamp; rows without one keep upload order.
		sort.SliceStable(idxs, func(a, b int) bool {
			ta, okA := records[idxs[a]].Timestamp()
			tb, okB := records[idxs[b]].Timestamp()
			if !okA || !okB {
				return false
			}
			return ta.Before(tb)
		})

		h := NewHistory()
		for _, i := range idxs {
			tx := records[i]
			out[i] = Extract(tx, h)
			ts, ok := tx.Timestamp()
			h.Observe(ts, ok, tx.Amount())
		}
	}

	return out
}

// appendIndicators one-hot encodes value against a fixed vocabulary.
func appendIndicators(v domain.FeatureVector, value string, vocab []string) domain.FeatureVector {
	for _, item := range vocab {
		if value == item {
			v = append(v, 1)
		} else {
			v = append(v, 0)
		}
	}
	return v
}

// normalizeCardType maps card network spellings onto the encoding vocab.
func normalizeCardType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "american express":
		return "amex"
	case "master card":
		return "mastercard"
	}
	return s
}

// locationNumeric concatenates the digits of a city/ZIP value, following
// the training pipeline's encoding. Values with no digits map to -1.
func locationNumeric(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return -1
	}
	// Cap the digit run so absurd inputs cannot overflow.
	digits := b.String()
	if len(digits) > 9 {
		digits = digits[:9]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return -1
	}
	return float64(n)
}
