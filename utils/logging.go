package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	logger "github.com/sirupsen/logrus"
)

// LogWriter owns the optional log file opened by InitLogger.
type LogWriter struct {
	file *os.File
}

// Dispose closes the log file.
func (lw *LogWriter) Dispose() {
	if lw.file != nil {
		lw.file.Close()
		lw.file = nil
	}
}

// InitLogger configures the standard logger from Config.Logging and returns it.
func InitLogger() (*LogWriter, *logger.Logger) {
	log := logger.StandardLogger()
	logWriter := &LogWriter{}
	if Config == nil {
		return logWriter, log
	}

	log.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	if Config.Logging.OutputStderr {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(os.Stdout)
	}

	outputLevel := logger.InfoLevel
	if Config.Logging.OutputLevel != "" {
		level, err := logger.ParseLevel(Config.Logging.OutputLevel)
		if err != nil {
			log.Warnf("invalid log level %v, using info", Config.Logging.OutputLevel)
		} else {
			outputLevel = level
		}
	}
	log.SetLevel(outputLevel)

	if Config.Logging.FilePath != "" {
		fileLevel := logger.WarnLevel
		if Config.Logging.FileLevel != "" {
			if level, err := logger.ParseLevel(Config.Logging.FileLevel); err == nil {
				fileLevel = level
			}
		}
		if fileLevel > outputLevel {
			// entries are filtered by the logger level before hooks run, so the
			// console output moves into a hook as well
			log.SetLevel(fileLevel)
			log.SetOutput(io.Discard)
			log.AddHook(&fileHook{writer: stdWriter(), levels: levelsUpTo(outputLevel), formatter: log.Formatter})
		}

		file, err := os.OpenFile(Config.Logging.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Errorf("could not open log file %v: %v", Config.Logging.FilePath, err)
		} else {
			logWriter.file = file
			log.AddHook(&fileHook{writer: file, levels: levelsUpTo(fileLevel), formatter: &logger.JSONFormatter{}})
		}
	}

	return logWriter, log
}

func stdWriter() io.Writer {
	if Config.Logging.OutputStderr {
		return os.Stderr
	}
	return os.Stdout
}

func levelsUpTo(max logger.Level) []logger.Level {
	levels := []logger.Level{}
	for _, level := range logger.AllLevels {
		if level <= max {
			levels = append(levels, level)
		}
	}
	return levels
}

// fileHook writes entries of the given levels to a separate writer.
type fileHook struct {
	mutex     sync.Mutex
	writer    io.Writer
	levels    []logger.Level
	formatter logger.Formatter
}

func (hook *fileHook) Levels() []logger.Level {
	return hook.levels
}

func (hook *fileHook) Fire(entry *logger.Entry) error {
	line, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}

	hook.mutex.Lock()
	defer hook.mutex.Unlock()
	_, err = hook.writer.Write(line)
	return err
}

// LogFatal logs a fatal error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogFatal is called.
func LogFatal(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Fatal(errorMsg)
}

// LogError logs an error with callstack info that skips callerSkip many levels with arbitrarily many additional infos.
// callerSkip equal to 0 gives you info directly where LogError is called.
func LogError(err error, errorMsg interface{}, callerSkip int, additionalInfos ...map[string]interface{}) {
	logErrorInfo(err, callerSkip, additionalInfos...).Error(errorMsg)
}

func logErrorInfo(err error, callerSkip int, additionalInfos ...map[string]interface{}) *logger.Entry {
	logFields := logger.NewEntry(logger.New())

	pc, fullFilePath, line, ok := runtime.Caller(callerSkip + 2)
	if ok {
		logFields = logFields.WithFields(logger.Fields{
			"_file":     filepath.Base(fullFilePath),
			"_function": runtime.FuncForPC(pc).Name(),
			"_line":     line,
		})
	} else {
		logFields = logFields.WithField("runtime", "Callstack cannot be read")
	}

	errColl := []string{}
	for {
		errColl = append(errColl, fmt.Sprint(err))
		nextErr := errors.Unwrap(err)
		if nextErr != nil {
			err = nextErr
		} else {
			break
		}
	}

	errMarkSign := "~"
	for idx := 0; idx < (len(errColl) - 1); idx++ {
		errInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx, errMarkSign)
		nextErrInfoText := fmt.Sprintf("%serrInfo_%v%s", errMarkSign, idx+1, errMarkSign)
		if idx == (len(errColl) - 2) {
			nextErrInfoText = fmt.Sprintf("%serror%s", errMarkSign, errMarkSign)
		}

		// Replace the last occurrence of the next error in the current error
		lastIdx := strings.LastIndex(errColl[idx], errColl[idx+1])
		if lastIdx != -1 {
			errColl[idx] = errColl[idx][:lastIdx] + nextErrInfoText + errColl[idx][lastIdx+len(errColl[idx+1]):]
		}

		errInfoText = strings.ReplaceAll(errInfoText, errMarkSign, "")
		logFields = logFields.WithField(errInfoText, errColl[idx])
	}

	if err != nil {
		logFields = logFields.WithField("errType", fmt.Sprintf("%T", err)).WithError(err)
	}

	for _, infoMap := range additionalInfos {
		for name, info := range infoMap {
			logFields = logFields.WithField(name, info)
		}
	}

	return logFields
}
