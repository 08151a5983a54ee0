package journallog

import "time"

const (
	defaultMaxFileSize = int64(128 * 1024 * 1024)
	defaultMaxDuration = 24 * time.Hour
	defaultMaxEntries  = uint64(0) // unlimited

	defaultMaxFiles     = 0 // unlimited
	defaultMaxTotalSize = int64(0)
	defaultMaxAge       = time.Duration(0)
)

// RotationPolicy names the limits that trigger rotation of the active file
// when any one of them is exceeded. A zero field means "no limit."
type RotationPolicy struct {
	MaxFileSize int64
	MaxDuration time.Duration
	MaxEntries  uint64
}

// RetentionPolicy names the limits enforced across the whole chain after
// every rotation and on startup. A zero field means "no limit."
type RetentionPolicy struct {
	MaxFiles     int
	MaxTotalSize int64
	MaxAge       time.Duration
}

type config struct {
	rotation  RotationPolicy
	retention RetentionPolicy
	keyed     bool
	compact   bool
	buckets   struct{ data, field uint64 }
}

func defaultConfig() config {
	c := config{
		rotation: RotationPolicy{
			MaxFileSize: defaultMaxFileSize,
			MaxDuration: defaultMaxDuration,
			MaxEntries:  defaultMaxEntries,
		},
		retention: RetentionPolicy{
			MaxFiles:     defaultMaxFiles,
			MaxTotalSize: defaultMaxTotalSize,
			MaxAge:       defaultMaxAge,
		},
		keyed:   true,
		compact: true,
	}
	c.buckets.data = 2048
	c.buckets.field = 128
	return c
}

// Option mutates a Log's configuration, in the functional-options style of
// gsfa/store/option.go.
type Option func(*config)

// WithRotationPolicy sets the thresholds that trigger rotation.
func WithRotationPolicy(p RotationPolicy) Option {
	return func(c *config) { c.rotation = p }
}

// WithRetentionPolicy sets the thresholds enforced across the chain.
func WithRetentionPolicy(p RetentionPolicy) Option {
	return func(c *config) { c.retention = p }
}

// WithUnkeyedHash selects Jenkins lookup3 hashing for new files instead of
// keyed SipHash.
func WithUnkeyedHash() Option {
	return func(c *config) { c.keyed = false }
}

// WithFullEntryItems disables compact (32-bit) entry-item encoding for new
// files.
func WithFullEntryItems() Option {
	return func(c *config) { c.compact = false }
}

// WithBucketCounts sets the data/field hash-table bucket counts for new
// files.
func WithBucketCounts(data, field uint64) Option {
	return func(c *config) { c.buckets.data, c.buckets.field = data, field }
}
