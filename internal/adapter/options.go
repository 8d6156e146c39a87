package adapter

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tourdesk/internal/ids"
	"github.com/roach88/tourdesk/internal/logging"
	"github.com/roach88/tourdesk/internal/schema"
	"github.com/roach88/tourdesk/internal/seed"
	"github.com/roach88/tourdesk/internal/session"
)

// Option configures an adapter.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	schema     *schema.Registry
	fixtures   *seed.Fixtures
	persister  session.Persister
	secret     string
	ids        ids.Generator
	now        func() time.Time
	bcryptCost int
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = logging.OrNop(l) }
}

// WithSchema validates inserts and updates against reg.
func WithSchema(reg *schema.Registry) Option {
	return func(o *options) { o.schema = reg }
}

// WithFixtures seeds the mock variant. Other variants ignore it.
func WithFixtures(f *seed.Fixtures) Option {
	return func(o *options) { o.fixtures = f }
}

// WithPersister sets where the current session is kept.
func WithPersister(p session.Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithJWTSecret sets the access token signing secret.
func WithJWTSecret(secret string) Option {
	return func(o *options) { o.secret = secret }
}

// WithIDGenerator sets the generator for ids of new records and accounts.
func WithIDGenerator(g ids.Generator) Option {
	return func(o *options) { o.ids = g }
}

// WithClock sets the time source for sessions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

func buildOptions(opts []Option) *options {
	o := &options{
		logger:     zap.NewNop(),
		persister:  &session.MemoryPersister{},
		secret:     "tourdesk-local-secret",
		ids:        ids.UUIDv7{},
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) base(name string, t tables, a accounts) base {
	issuer := session.NewIssuer(o.secret)
	issuer.Now = o.now
	logger := o.logger.With(zap.String("adapter", name))
	return base{
		name:   name,
		tables: t,
		auth: &authenticator{
			accounts:   a,
			issuer:     issuer,
			persister:  o.persister,
			ids:        o.ids,
			bcryptCost: o.bcryptCost,
			now:        o.now,
			logger:     logger,
		},
		schema:  o.schema,
		ids:     o.ids,
		changes: newNotifier(logger),
		logger:  logger,
	}
}
