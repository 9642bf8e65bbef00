package mongoutil

import (
	"testing"

	"PShop/tools/errs"
)

func TestValidateAndSetDefaults(t *testing.T) {
	c := &Config{Address: []string{"db1:27017", "db2:27017"}, Database: "shop", Username: "u", Password: "p"}
	if err := c.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	want := "mongodb://u:p@db1:27017,db2:27017/shop?authSource=shop&maxPoolSize=100"
	if c.Uri != want {
		t.Fatalf("uri = %s", c.Uri)
	}
	if c.MaxRetry != defaultMaxRetry {
		t.Fatalf("retry = %d", c.MaxRetry)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	if err := (&Config{Database: "x"}).ValidateAndSetDefaults(); !errs.ErrArgs.Is(err) {
		t.Fatalf("no address: %v", err)
	}
	if err := (&Config{Uri: "mongodb://h"}).ValidateAndSetDefaults(); !errs.ErrArgs.Is(err) {
		t.Fatalf("no database: %v", err)
	}
}
