package filewatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opst/modelfab/pkg/utils/filewatch"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context is not cancelled")
	}
}

func TestUntilModifyContext(t *testing.T) {
	t.Run("when a watched file is written, it cancels context", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(file, []byte("port: 8080"), 0644); err != nil {
			t.Fatal(err)
		}

		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), file, "")
		if err != nil {
			t.Fatal(err)
		}
		defer cancel()
		if ctx.Err() != nil {
			t.Fatalf("unexpected error: %v", ctx.Err())
		}

		if err := os.WriteFile(file, []byte("port: 8081"), 0644); err != nil {
			t.Fatal(err)
		}
		waitDone(t, ctx)
		if !filewatch.IsModified(ctx) {
			t.Errorf("unexpected cause: %v", context.Cause(ctx))
		}
	})

	t.Run("when a file is created in a watched directory, it cancels context", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), dir)
		if err != nil {
			t.Fatal(err)
		}
		defer cancel()

		if err := os.WriteFile(filepath.Join(dir, "hooks.yaml"), nil, 0644); err != nil {
			t.Fatal(err)
		}
		waitDone(t, ctx)
		if !filewatch.IsModified(ctx) {
			t.Errorf("unexpected cause: %v", context.Cause(ctx))
		}
	})

	t.Run("cancel func cancels without modification", func(t *testing.T) {
		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		cancel()
		waitDone(t, ctx)
		if filewatch.IsModified(ctx) {
			t.Error("cancelled context is taken as modified")
		}
	})

	t.Run("when a file does not exist, it fails", func(t *testing.T) {
		_, _, err := filewatch.UntilModifyContext(
			context.Background(), filepath.Join(t.TempDir(), "nothing"),
		)
		if err == nil {
			t.Error("expected error, but nil")
		}
	})
}
