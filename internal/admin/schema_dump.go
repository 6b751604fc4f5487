package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/martinsk/mskql/internal/schema"
)

// schemaColumn and schemaTable are the YAML-facing projection of
// schema.Column/schema.Table — kept separate from the live structs so
// the debug dump's shape doesn't couple to internal field layout.
type schemaColumn struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	NotNull    bool   `yaml:"not_null,omitempty"`
	Unique     bool   `yaml:"unique,omitempty"`
	PrimaryKey bool   `yaml:"primary_key,omitempty"`
	AutoIncr   bool   `yaml:"auto_increment,omitempty"`
}

type schemaTable struct {
	Name    string         `yaml:"name"`
	Columns []schemaColumn `yaml:"columns"`
}

type schemaDump struct {
	Generation uint64        `yaml:"generation"`
	Tables     []schemaTable `yaml:"tables"`
}

func handleSchemaYAML(c *gin.Context, db *schema.Database) {
	dump := schemaDump{Generation: db.Generation()}
	for _, t := range db.Tables() {
		if t.IsCatalog {
			continue
		}
		st := schemaTable{Name: t.Name}
		for _, col := range t.Columns {
			st.Columns = append(st.Columns, schemaColumn{
				Name:       col.Name,
				Type:       col.Type.String(),
				NotNull:    col.NotNull,
				Unique:     col.Unique,
				PrimaryKey: col.PrimaryKey,
				AutoIncr:   col.AutoIncr,
			})
		}
		dump.Tables = append(dump.Tables, st)
	}

	out, err := yaml.Marshal(dump)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/yaml", out)
}
