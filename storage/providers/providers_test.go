package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quireapp/quire/storage"
)

func TestNewDispatchesEveryKind(t *testing.T) {
	cfgs := map[storage.Kind]storage.ProviderConfig{
		storage.KindDropbox:     {Kind: storage.KindDropbox, Token: "t"},
		storage.KindBackblaze:   {Kind: storage.KindBackblaze, KeyID: "k", AppKey: "a", Bucket: "b"},
		storage.KindGofile:      {Kind: storage.KindGofile, Token: "t"},
		storage.KindPixeldrain:  {Kind: storage.KindPixeldrain, Token: "t"},
		storage.KindCatbox:      {Kind: storage.KindCatbox, UserHash: "h"},
		storage.KindFileIO:      {Kind: storage.KindFileIO},
		storage.KindTransferSh:  {Kind: storage.KindTransferSh},
		storage.KindNullPointer: {Kind: storage.KindNullPointer},
		storage.KindTelegram:    {Kind: storage.KindTelegram, Token: "t", ChatID: "c"},
		storage.KindGitHub:      {Kind: storage.KindGitHub, Token: "t", Owner: "o", Repo: "r"},
	}
	require.Len(t, cfgs, len(storage.Kinds()))

	for kind, cfg := range cfgs {
		adapter, err := New(cfg, nil)
		require.NoError(t, err, "kind %s", kind)
		assert.NotNil(t, adapter, "kind %s", kind)
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(storage.ProviderConfig{Kind: "ftp"}, nil)
	require.Error(t, err)
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	_, err := New(storage.ProviderConfig{Kind: storage.KindBackblaze, KeyID: "k"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app_key")
}

func TestResolverSharesClient(t *testing.T) {
	client := &http.Client{}
	resolve := Resolver(client)

	adapter, err := resolve(storage.ProviderConfig{Kind: storage.KindPixeldrain, Token: "t"})
	require.NoError(t, err)

	p, ok := adapter.(*pixeldrain)
	require.True(t, ok)
	assert.Same(t, client, p.client)
}
