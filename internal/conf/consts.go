package conf

// Supported database types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)
