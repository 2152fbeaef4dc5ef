package db

import (
	"embed"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/chainaide/dbtypes"
	"github.com/ethpandaops/chainaide/types"
	"github.com/ethpandaops/chainaide/utils"

	_ "github.com/jackc/pgx/v4/stdlib"
)

//go:embed schema/pgsql/*.sql
var EmbedPgsqlSchema embed.FS

//go:embed schema/sqlite/*.sql
var EmbedSqliteSchema embed.FS

// DB is a pointer to the registry database
var DbEngine dbtypes.DBEngineType
var ReaderDb *sqlx.DB
var writerDb *sqlx.DB
var writerMutex sync.Mutex

var logger = logrus.StandardLogger().WithField("module", "db")

func checkDbConn(dbConn *sqlx.DB, dataBaseName string) error {
	// The golang sql driver does not properly implement PingContext
	// therefore we use a timer to catch db connection timeouts
	pingResult := make(chan error, 1)
	go func() {
		pingResult <- dbConn.Ping()
	}()

	select {
	case err := <-pingResult:
		if err != nil {
			return fmt.Errorf("unable to ping %s: %w", dataBaseName, err)
		}
		return nil
	case <-time.After(15 * time.Second):
		return fmt.Errorf("timeout while connecting to %s", dataBaseName)
	}
}

func initSqlite(config *types.SqliteDatabaseConfig) (*sqlx.DB, error) {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 50
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxOpenConns < config.MaxIdleConns {
		config.MaxIdleConns = config.MaxOpenConns
	}

	logger.Infof("initializing sqlite connection to %v with %v/%v conn limit", config.File, config.MaxIdleConns, config.MaxOpenConns)
	dbConn, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)", config.File))
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	if err := checkDbConn(dbConn, "database"); err != nil {
		dbConn.Close()
		return nil, err
	}
	dbConn.SetConnMaxIdleTime(0)
	dbConn.SetConnMaxLifetime(0)
	dbConn.SetMaxOpenConns(config.MaxOpenConns)
	dbConn.SetMaxIdleConns(config.MaxIdleConns)

	if _, err := dbConn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("error enabling sqlite wal mode: %w", err)
	}

	return dbConn, nil
}

func openPgsql(config *types.PgsqlDatabaseConfig, name string) (*sqlx.DB, error) {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 50
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxOpenConns < config.MaxIdleConns {
		config.MaxIdleConns = config.MaxOpenConns
	}

	logger.Infof("initializing pgsql %v connection to %v with %v/%v conn limit", name, config.Host, config.MaxIdleConns, config.MaxOpenConns)
	dbConn, err := sqlx.Open("pgx", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", config.Username, config.Password, config.Host, config.Port, config.Name))
	if err != nil {
		return nil, fmt.Errorf("error getting pgsql %v database: %w", name, err)
	}

	if err := checkDbConn(dbConn, name+" database"); err != nil {
		dbConn.Close()
		return nil, err
	}
	dbConn.SetConnMaxIdleTime(time.Second * 30)
	dbConn.SetConnMaxLifetime(time.Second * 60)
	dbConn.SetMaxOpenConns(config.MaxOpenConns)
	dbConn.SetMaxIdleConns(config.MaxIdleConns)
	return dbConn, nil
}

func initPgsql(writer *types.PgsqlDatabaseConfig, reader *types.PgsqlDatabaseConfig) (*sqlx.DB, *sqlx.DB, error) {
	dbConnWriter, err := openPgsql(writer, "writer")
	if err != nil {
		return nil, nil, err
	}

	dbConnReader, err := openPgsql(reader, "reader")
	if err != nil {
		dbConnWriter.Close()
		return nil, nil, err
	}

	return dbConnWriter, dbConnReader, nil
}

// IsEnabled reports whether a registry database is connected.
func IsEnabled() bool {
	return writerDb != nil
}

// InitDB connects the registry database. The engines "" and "none" leave the
// registry disabled.
func InitDB(config *types.DatabaseConfig) error {
	switch config.Engine {
	case "", "none":
		DbEngine = dbtypes.DBEngineAny
		return nil
	case "sqlite":
		dbConn, err := initSqlite(&config.Sqlite)
		if err != nil {
			return err
		}
		DbEngine = dbtypes.DBEngineSqlite
		writerDb, ReaderDb = dbConn, dbConn
	case "pgsql":
		readerConfig := &config.Pgsql
		writerConfig := (*types.PgsqlDatabaseConfig)(&config.PgsqlWriter)
		if writerConfig.Host == "" {
			writerConfig = readerConfig
		}
		dbConnWriter, dbConnReader, err := initPgsql(writerConfig, readerConfig)
		if err != nil {
			return err
		}
		DbEngine = dbtypes.DBEnginePgsql
		writerDb, ReaderDb = dbConnWriter, dbConnReader
	default:
		return fmt.Errorf("unknown database engine type: %s", config.Engine)
	}

	return nil
}

// MustInitDB connects the database configured in utils.Config and applies the
// embedded schema.
func MustInitDB() {
	err := InitDB(&utils.Config.Database)
	if err != nil {
		utils.LogFatal(err, "error initializing database", 0)
	}

	if IsEnabled() {
		err = ApplyEmbeddedDbSchema(-2)
		if err != nil {
			utils.LogFatal(err, "error applying database schema", 0)
		}
	}
}

func CloseDB() {
	if writerDb == nil {
		return
	}

	err := writerDb.Close()
	if err != nil {
		logger.Errorf("Error closing writer db connection: %v", err)
	}
	if ReaderDb != writerDb {
		err = ReaderDb.Close()
		if err != nil {
			logger.Errorf("Error closing reader db connection: %v", err)
		}
	}

	writerDb = nil
	ReaderDb = nil
	DbEngine = dbtypes.DBEngineAny
}

func RunDBTransaction(handler func(tx *sqlx.Tx) error) error {
	if writerDb == nil {
		return ErrNoDatabase
	}

	if DbEngine == dbtypes.DBEngineSqlite {
		writerMutex.Lock()
		defer writerMutex.Unlock()
	}

	tx, err := writerDb.Beginx()
	if err != nil {
		return fmt.Errorf("error starting db transactions: %v", err)
	}

	defer tx.Rollback()

	err = handler(tx)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("error committing db transaction: %v", err)
	}

	return nil
}

// ApplyEmbeddedDbSchema migrates the schema. version -2 applies all
// migrations, -1 the next one, any other value migrates up to that version.
func ApplyEmbeddedDbSchema(version int64) error {
	var engineDialect string
	var schemaDirectory string
	switch DbEngine {
	case dbtypes.DBEnginePgsql:
		goose.SetBaseFS(EmbedPgsqlSchema)
		engineDialect = "postgres"
		schemaDirectory = "schema/pgsql"
	case dbtypes.DBEngineSqlite:
		goose.SetBaseFS(EmbedSqliteSchema)
		engineDialect = "sqlite3"
		schemaDirectory = "schema/sqlite"
	default:
		return fmt.Errorf("unknown database engine")
	}
	if err := goose.SetDialect(engineDialect); err != nil {
		return err
	}

	if version == -2 {
		if err := goose.Up(writerDb.DB, schemaDirectory, goose.WithAllowMissing()); err != nil {
			return err
		}
	} else if version == -1 {
		if err := goose.UpByOne(writerDb.DB, schemaDirectory, goose.WithAllowMissing()); err != nil {
			return err
		}
	} else {
		if err := goose.UpTo(writerDb.DB, schemaDirectory, version, goose.WithAllowMissing()); err != nil {
			return err
		}
	}

	return nil
}

func EngineQuery(queryMap map[dbtypes.DBEngineType]string) string {
	if queryMap[DbEngine] != "" {
		return queryMap[DbEngine]
	}
	return queryMap[dbtypes.DBEngineAny]
}
