package catalog

import (
	"strings"

	"TrinoEventPump/internal/models"
)

// vendor — строка таблицы сопоставления имени каталога с видом СУБД
type vendor struct {
	keywords []string
	kind     models.CatalogKind
	typ      string
}

// Порядок важен: побеждает первое совпадение.
var vendors = []vendor{
	{keywords: []string{"postgres"}, kind: models.KindRelational, typ: "postgresql"},
	{keywords: []string{"mysql"}, kind: models.KindRelational, typ: "mysql"},
	{keywords: []string{"mongo"}, kind: models.KindDocument, typ: "mongodb"},
	{keywords: []string{"cassandra"}, kind: models.KindRelational, typ: "cassandra"},
	{keywords: []string{"redis"}, kind: models.KindRelational, typ: "redis"},
	{keywords: []string{"elastic"}, kind: models.KindRelational, typ: "elasticsearch"},
	{keywords: []string{"hive"}, kind: models.KindRelational, typ: "hive"},
	{keywords: []string{"kafka"}, kind: models.KindRelational, typ: "kafka"},
	{keywords: []string{"s3", "minio"}, kind: models.KindRelational, typ: "s3"},
}

// Classify определяет вид и тип каталога по подстроке в имени (без учёта регистра).
// Если ни одно ключевое слово не подошло, вид UNKNOWN, а тип равен имени каталога.
func Classify(name string) (models.CatalogKind, string) {
	lower := strings.ToLower(name)
	for _, v := range vendors {
		for _, kw := range v.keywords {
			if strings.Contains(lower, kw) {
				return v.kind, v.typ
			}
		}
	}
	return models.KindUnknown, name
}

// isSystemSchema — служебные схемы PostgreSQL/MySQL/MSSQL
func isSystemSchema(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "information_schema", "pg_catalog", "sys":
		return true
	}
	return strings.HasPrefix(lower, "pg_") ||
		strings.HasPrefix(lower, "mysql_") ||
		strings.HasPrefix(lower, "performance_")
}

func isSystemTable(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "pg_") ||
		strings.HasPrefix(lower, "information_") ||
		strings.HasPrefix(lower, "sys_") ||
		strings.HasPrefix(lower, "mysql_")
}

// isMongoSystemDatabase — admin, local, config и всё, что начинается с system
func isMongoSystemDatabase(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "admin", "local", "config":
		return true
	}
	return strings.HasPrefix(lower, "system")
}

// isNestedType — составные типы Trino
func isNestedType(typ string) bool {
	lower := strings.ToLower(typ)
	return strings.Contains(lower, "array") ||
		strings.Contains(lower, "map") ||
		strings.Contains(lower, "row") ||
		strings.Contains(lower, "json")
}
