package models

import (
	"encoding/json"
	"time"
)

// CatalogKind — вид источника данных, определяется один раз при создании каталога
type CatalogKind string

const (
	KindRelational CatalogKind = "RELATIONAL"
	KindDocument   CatalogKind = "DOCUMENT"
	KindUnknown    CatalogKind = "UNKNOWN"
)

// StatusActive — статус каталога, обнаруженного по событиям
const StatusActive = "ACTIVE"

// Catalog — обнаруженный источник данных (экземпляр коннектора Trino).
// Дочерняя иерархия хранится в Namespaces: либо схемы, либо коллекции, но не обе сразу.
type Catalog struct {
	ID           string
	Name         string
	Kind         CatalogKind
	Type         string
	Status       string
	FirstSeen    time.Time
	LastSeen     time.Time
	TotalQueries int64
	Namespaces   Namespaces
}

// Namespaces — сумма типов {RelationalNamespaces, DocumentNamespaces}
type Namespaces interface {
	namespaces()
}

// RelationalNamespaces — схемы реляционного (или неизвестного) каталога
type RelationalNamespaces struct {
	Schemas []Schema
}

// DocumentNamespaces — коллекции документного каталога
type DocumentNamespaces struct {
	Collections []Collection
}

func (RelationalNamespaces) namespaces() {}
func (DocumentNamespaces) namespaces()   {}

// Schemas возвращает схемы каталога; для документного каталога всегда nil.
func (c Catalog) Schemas() []Schema {
	if ns, ok := c.Namespaces.(RelationalNamespaces); ok {
		return ns.Schemas
	}
	return nil
}

// Collections возвращает коллекции каталога; для реляционного каталога всегда nil.
func (c Catalog) Collections() []Collection {
	if ns, ok := c.Namespaces.(DocumentNamespaces); ok {
		return ns.Collections
	}
	return nil
}

type catalogJSON struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         CatalogKind  `json:"kind"`
	Type         string       `json:"type"`
	Status       string       `json:"status,omitempty"`
	FirstSeen    time.Time    `json:"firstSeen"`
	LastSeen     time.Time    `json:"lastSeen"`
	TotalQueries int64        `json:"totalQueries"`
	Schemas      []Schema     `json:"schemas,omitempty"`
	Collections  []Collection `json:"collections,omitempty"`
}

// MarshalJSON выводит либо "schemas", либо "collections" в зависимости от вида каталога.
func (c Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(catalogJSON{
		ID:           c.ID,
		Name:         c.Name,
		Kind:         c.Kind,
		Type:         c.Type,
		Status:       c.Status,
		FirstSeen:    c.FirstSeen,
		LastSeen:     c.LastSeen,
		TotalQueries: c.TotalQueries,
		Schemas:      c.Schemas(),
		Collections:  c.Collections(),
	})
}

// Schema — пространство имён реляционного каталога
type Schema struct {
	Name         string    `json:"name"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	TotalQueries int64     `json:"totalQueries"`
	Tables       []Table   `json:"tables"`
}

type Table struct {
	Name         string    `json:"name"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	TotalQueries int64     `json:"totalQueries"`
	Columns      []Column  `json:"columns"`
}

// Column — тип задаётся один раз при первом упоминании
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Collection — коллекция документного каталога (без уровня схем)
type Collection struct {
	Name         string    `json:"name"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	TotalQueries int64     `json:"totalQueries"`
	Fields       []Field   `json:"fields"`
}

type Field struct {
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Nested bool   `json:"nested"`
}
