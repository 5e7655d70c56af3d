// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)

	for _, dialect := range []Dialect{DialectPostgres, DialectSQLite} {
		t.Run(string(dialect), func(t *testing.T) {
			entries, err := readMigrations(dialect)
			require.NoError(t, err)

			fileNames := make(map[string]bool)
			for _, entry := range entries {
				fileNames[entry.Name()] = true
				assert.True(t, pattern.MatchString(entry.Name()),
					"file %s should match pattern NNNNNN_name.(up|down).sql", entry.Name())
			}
			assert.True(t, fileNames["000001_create_users.up.sql"])
			assert.True(t, fileNames["000001_create_users.down.sql"])
		})
	}
}

func TestMigrationsFS_DialectsStayInStep(t *testing.T) {
	pg, err := allMigrationVersions(DialectPostgres)
	require.NoError(t, err)
	lite, err := allMigrationVersions(DialectSQLite)
	require.NoError(t, err)

	assert.Equal(t, pg, lite, "every schema change needs both dialects")
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(DialectSQLite, 1)
	require.NoError(t, err)
	assert.Equal(t, "000001_create_users", name)

	name, err = MigrationName(DialectPostgres, 999)
	require.NoError(t, err)
	assert.Empty(t, name)

	_, err = MigrationName(Dialect("oracle"), 1)
	require.Error(t, err)
}
