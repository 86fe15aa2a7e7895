package seed

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contract-flow/pkg/config"
	"contract-flow/pkg/database"
	"contract-flow/pkg/mailer"
	"contract-flow/pkg/services/contracts"
)

func TestBuiltin(t *testing.T) {
	templates, err := Builtin()
	require.NoError(t, err)
	require.Len(t, templates, 3)

	nda := templates[0]
	assert.Equal(t, "Non-Disclosure Agreement (NDA)", nda.Name)
	assert.Equal(t, "Legal", nda.Category)
	assert.Equal(t, []string{"confidentiality", "legal", "business"}, nda.Tags)
	assert.True(t, strings.HasPrefix(nda.Content, "NON-DISCLOSURE AGREEMENT\n"))
	assert.Contains(t, nda.Content, "Receiving Party: _______________ Date: _______________")
}

func TestTemplatesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	url := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString())
	db, closeFn, err := database.Open(ctx, config.DatabaseConfig{URL: url}, zap.NewNop())
	require.NoError(t, err)
	defer closeFn()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	svc := contracts.NewService(db, &mailer.Recorder{}, "", zap.NewNop())
	templates, err := Builtin()
	require.NoError(t, err)

	added, err := Templates(ctx, svc, templates, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = Templates(ctx, svc, templates, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, added)

	hr, err := svc.ListTemplates(ctx, contracts.TemplateFilter{Tag: "hr"})
	require.NoError(t, err)
	require.Len(t, hr, 1)
	assert.Equal(t, "Employment Contract", hr[0].Name)
}
