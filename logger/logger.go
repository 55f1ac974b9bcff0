package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log *logrus.Logger
	mu  sync.Mutex
)

func Init(level string) {
	mu.Lock()
	defer mu.Unlock()
	log = logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}

func ensure() *logrus.Logger {
	mu.Lock()
	if log == nil {
		mu.Unlock()
		Init("info")
		mu.Lock()
	}
	l := log
	mu.Unlock()
	return l
}

// AttachTranscript duplicates all subsequent log output into w, in addition
// to stderr. The archive sink uses this to capture the run log so it can be
// appended to the container as GetThis.log.
func AttachTranscript(w io.Writer) {
	l := ensure()
	l.SetOutput(io.MultiWriter(os.Stderr, w))
}

// DetachTranscript stops duplicating log output.
func DetachTranscript() {
	ensure().SetOutput(os.Stderr)
}

func Debug(args ...interface{}) { ensure().Debug(args...) }
func Info(args ...interface{})  { ensure().Info(args...) }
func Warn(args ...interface{})  { ensure().Warn(args...) }
func Error(args ...interface{}) { ensure().Error(args...) }
func Fatal(args ...interface{}) { ensure().Fatal(args...) }

func Debugf(format string, args ...interface{}) { ensure().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { ensure().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { ensure().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { ensure().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { ensure().Fatalf(format, args...) }
