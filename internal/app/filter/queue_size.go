package filter

import "context"

// QueueSizeConfig represents the configuration for QueueSizeFilter.
type QueueSizeConfig struct {
	MaxSize int `yaml:"max_size" mapstructure:"max_size" default:"50" validate:"gte=1"`
}

// QueueSizeFilter caps the number of queued tracks, head included.
type QueueSizeFilter struct {
	config QueueSizeConfig
}

func (f *QueueSizeFilter) Name() string {
	return "queue_size_filter"
}

func (f *QueueSizeFilter) Description() string {
	return "Rejects requests when the queue is full"
}

func (f *QueueSizeFilter) ReturnCodes() []string {
	return []string{"queue_full"}
}

func (f *QueueSizeFilter) ValidateConfig(settings map[string]any) error {
	return decodeSettings(settings, &f.config)
}

func (f *QueueSizeFilter) Check(ctx context.Context, req Request) Result {
	if f.config.MaxSize > 0 && len(req.Queued) >= f.config.MaxSize {
		return Reject("queue_full")
	}
	return Accept()
}

func init() {
	Register("queue_size_filter", func() Filter {
		return &QueueSizeFilter{}
	})
}
