package ole

import "go.uber.org/zap"

type Validation int

const (
	ValidationPermissive Validation = iota
	ValidationStrict     Validation = iota
)

func (v Validation) IsStrict() bool {
	return v == ValidationStrict
}

func (v Validation) String() string {
	if v.IsStrict() {
		return "strict"
	}
	return "permissive"
}

type options struct {
	validation Validation
	logger     *zap.SugaredLogger
}

func defaultOptions() options {
	return options{
		validation: ValidationPermissive,
		logger:     zap.NewNop().Sugar(),
	}
}

// Option configures how a compound file is opened.
type Option func(*options)

// WithValidation selects permissive (default) or strict structural checks.
//
// Strict mode additionally rejects files whose redundant bookkeeping
// disagrees with the allocation tables, e.g. a wrong DIFAT sector count or
// siblings that break the directory name ordering.
func WithValidation(v Validation) Option {
	return func(o *options) {
		o.validation = v
	}
}

// WithLogger enables debug logging of the open sequence.
// A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = zap.NewNop()
		}
		o.logger = l.Sugar()
	}
}
