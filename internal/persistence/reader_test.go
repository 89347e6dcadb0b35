package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/arkin-run/arkin/pkg/types"
)

func writeCatalog(t *testing.T, dir string, c catalog) {
	t.Helper()
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "catalog.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenReaderWithMissingCatalogStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.GetAsset(uuid.New()); ok {
		t.Fatal("expected empty reader to have no assets")
	}
}

func TestReaderResolvesByIDAndSymbol(t *testing.T) {
	dir := t.TempDir()
	assetID := uuid.New()
	instrumentID := uuid.New()
	writeCatalog(t, dir, catalog{
		Assets:      []types.Asset{{ID: assetID, Symbol: "BTC", Name: "Bitcoin"}},
		Instruments: []types.Instrument{{ID: instrumentID, Symbol: "BTC-PERP"}},
	})

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}

	a, ok := r.GetAsset(assetID)
	if !ok || a.Symbol != "BTC" {
		t.Fatalf("expected asset BTC by id, got %+v ok=%v", a, ok)
	}
	a2, ok := r.GetAssetBySymbol("BTC")
	if !ok || a2.ID != assetID {
		t.Fatalf("expected asset lookup by symbol to match id, got %+v ok=%v", a2, ok)
	}

	i, ok := r.GetInstrumentBySymbol("BTC-PERP")
	if !ok || i.ID != instrumentID {
		t.Fatalf("expected instrument lookup by symbol, got %+v ok=%v", i, ok)
	}
}

func TestReloadReplacesIndexesAtomically(t *testing.T) {
	dir := t.TempDir()
	id1 := uuid.New()
	writeCatalog(t, dir, catalog{Assets: []types.Asset{{ID: id1, Symbol: "BTC"}}})

	r, err := OpenReader(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.GetAsset(id1); !ok {
		t.Fatal("expected initial asset present")
	}

	id2 := uuid.New()
	writeCatalog(t, dir, catalog{Assets: []types.Asset{{ID: id2, Symbol: "ETH"}}})
	if err := r.Reload(dir); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.GetAsset(id1); ok {
		t.Fatal("expected stale asset evicted after reload")
	}
	if _, ok := r.GetAsset(id2); !ok {
		t.Fatal("expected new asset present after reload")
	}
}
