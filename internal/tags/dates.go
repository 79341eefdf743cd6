package tags

import (
	"time"

	"github.com/araddon/dateparse"
)

// epochFloor guards against extractor keys that carry counters rather than
// timestamps; anything below ~1970-12-14 cannot be a plausible upload time
const epochFloor = 30_000_000

// SpecificDate parses each candidate with a fuzzy parser and returns the
// earliest plausible one as epoch seconds. Future dates and the 1970-01-01
// placeholder are ignored. Returns 0 when nothing survives.
func SpecificDate(candidates ...any) int64 {
	now := time.Now()
	var best int64

	for _, c := range candidates {
		s := Stringify(c)
		if s == "" {
			continue
		}

		t, err := dateparse.ParseAny(s)
		if err != nil {
			continue
		}
		if !t.Before(now) {
			continue
		}
		epoch := t.Unix()
		if epoch <= 0 || t.Year() == 1970 && t.YearDay() == 1 {
			// Placeholder epoch, not a real date
			continue
		}
		if best == 0 || epoch < best {
			best = epoch
		}
	}
	return best
}

// TubeDate resolves an upload time from extractor output: raw epoch ints
// are accepted directly when large enough to be timestamps, everything
// else goes through the fuzzy parser.
func TubeDate(t RawTags, keys ...string) int64 {
	if len(keys) == 0 {
		keys = []string{"release_timestamp", "timestamp", "upload_date", "release_date", "date", "created_at"}
	}

	for _, key := range keys {
		v := t.Get(key)
		if v == nil {
			continue
		}

		if n := SafeInt(v); n > epochFloor {
			if _, isStr := v.(string); !isStr {
				return n
			}
			// Stringified values can be yyyymmdd, which also exceeds the
			// floor; only trust all-digit strings that parse as epochs and
			// not as dates
			if epoch := SpecificDate(v); epoch > 0 {
				return epoch
			}
			return n
		}

		if epoch := SpecificDate(v); epoch > 0 {
			return epoch
		}
	}
	return 0
}
