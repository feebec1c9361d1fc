package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/autograder/apps/api/echo"
	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
	appfs "github.com/trezcool/autograder/fs"
	emailsvc "github.com/trezcool/autograder/services/email"
	eventsvc "github.com/trezcool/autograder/services/events"
	logsvc "github.com/trezcool/autograder/services/logger"
	metricsvc "github.com/trezcool/autograder/services/metrics"
	rediscache "github.com/trezcool/autograder/storage/cache/redis"
	"github.com/trezcool/autograder/storage/database"
	"github.com/trezcool/autograder/storage/database/dummy"
	sqlxrepos "github.com/trezcool/autograder/storage/database/sqlx"
)

const engineDummy = "dummy"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Closers collects the clean up funcs of the providers; they run in reverse order.
type Closers struct {
	fns []func() error
}

func (c *Closers) add(fn func() error) {
	c.fns = append(c.fns, fn)
}

func (c *Closers) Close(logger core.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			logger.Error("closing dependency", err)
		}
	}
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

type repoParams struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	DBLogger core.Logger `name:"dbLogger"`
	Closers  *Closers
}

// newQuizRepository sets up the configured store, behind the redis cache when redis.addr is set.
func newQuizRepository(p repoParams) (quiz.Repository, error) {
	var repo quiz.Repository
	if p.Conf.Database.Engine == engineDummy {
		db, err := dummydb.Open()
		if err != nil {
			return nil, err
		}
		repo = dummydb.NewQuizRepository(db)
	} else {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, p.Conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(p.Conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		p.Closers.add(db.Close)
		if err := database.Migrate(db.DB, "up"); err != nil {
			return nil, errors.Wrap(err, "migrating database")
		}
		repo = sqlxrepos.NewQuizRepository(db)
	}

	if p.Conf.Redis.Addr == "" {
		return repo, nil
	}
	rdb, err := rediscache.NewClient(context.Background(), p.Conf.Redis)
	if err != nil {
		p.DBLogger.Warn(fmt.Sprintf("redis unavailable, quiz cache disabled: %v", err), err)
		return repo, nil
	}
	p.Closers.add(rdb.Close)
	return rediscache.NewQuizRepository(repo, rdb, p.Conf.Redis.QuizTTL, p.DBLogger), nil
}

func newTemplates(conf *core.Config) (*core.Templates, error) {
	return core.ParseTemplates(appfs.FS, "templates/email", conf.FrontendBaseURL, !conf.Debug)
}

func newEmailService(conf *core.Config, tmpls *core.Templates, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(os.Stdout, conf, tmpls, logger)
	}
	return emailsvc.NewSendgridService(conf, tmpls, logger)
}

func newPublisher(conf *core.Config, logger core.Logger, closers *Closers) eventsvc.Publisher {
	if conf.AMQP.URL == "" {
		return eventsvc.NopPublisher{}
	}
	pub, err := eventsvc.Dial(conf.AMQP.URL, conf.AMQP.Exchange)
	if err != nil {
		logger.Warn(fmt.Sprintf("amqp unavailable, events disabled: %v", err), err)
		return eventsvc.NopPublisher{}
	}
	closers.add(pub.Close)
	return pub
}

func newMetrics() *metricsvc.Recorder {
	return metricsvc.NewRecorder(prometheus.DefaultRegisterer)
}

type quizServiceParams struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	Repo     quiz.Repository
	Notifier *emailsvc.ResultNotifier
	Events   *eventsvc.QuizEvents
	Metrics  *metricsvc.Recorder
}

// newQuizService wires the submit & expiry hooks.
func newQuizService(p quizServiceParams) (*quiz.Service, error) {
	svc, err := quiz.NewService(p.Repo, p.Conf, p.Logger)
	if err != nil {
		return nil, err
	}
	svc.OnSubmit(p.Notifier.Notify)
	svc.OnSubmit(p.Events.Graded)
	svc.OnSubmit(p.Metrics.Graded)
	svc.OnTimerExpired(p.Events.Expired)
	svc.OnTimerExpired(p.Metrics.Expired)
	return svc, nil
}

// ShutdownSignal is closed when the server must shut down.
type ShutdownSignal chan struct{}

func newShutdownSignal() ShutdownSignal {
	return make(ShutdownSignal)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	svc *quiz.Service,
	metrics *metricsvc.Recorder,
	shutdown ShutdownSignal,
) echoapi.Server {
	signal := func() {
		select {
		case <-shutdown:
		default:
			close(shutdown)
		}
	}
	return echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		QuizSvc:        svc,
		Metrics:        metrics,
		DisableReqLogs: !conf.Debug,
		SignalShutdown: signal,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Closers { return new(Closers) }))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newQuizRepository))
	must(c.Provide(newTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(emailsvc.NewResultNotifier))
	must(c.Provide(newPublisher))
	must(c.Provide(eventsvc.NewQuizEvents))
	must(c.Provide(newMetrics))
	must(c.Provide(newQuizService))
	must(c.Provide(newShutdownSignal))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
