package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestFilesystem(t *testing.T) (Tool, string) {
	t.Helper()
	root := t.TempDir()
	tool, err := NewFilesystem(Options{WorkspaceRoot: root}, nil)
	if err != nil {
		t.Fatalf("NewFilesystem() error = %v", err)
	}
	return tool, root
}

func TestFilesystemWriteAndRead(t *testing.T) {
	tool, _ := newTestFilesystem(t)
	ctx := context.Background()

	result := tool.Execute(ctx, map[string]any{
		"operation": "write",
		"path":      "notes/a.txt",
		"content":   "hello workspace",
	})
	if !result.Success {
		t.Fatalf("write failed: %s", result.Error)
	}

	result = tool.Execute(ctx, map[string]any{
		"operation": "read",
		"path":      "notes/a.txt",
	})
	if !result.Success {
		t.Fatalf("read failed: %s", result.Error)
	}
	output, _ := result.Output.(map[string]any)
	if output["content"] != "hello workspace" {
		t.Errorf("Unexpected content: %v", output["content"])
	}
}

func TestFilesystemWriteCreatesNestedParents(t *testing.T) {
	tool, root := newTestFilesystem(t)
	ctx := context.Background()

	// 全新工作区里逐级缺失的父目录由 write 负责创建。
	result := tool.Execute(ctx, map[string]any{
		"operation": "write",
		"path":      "a/b/c/deep.txt",
		"content":   "nested",
	})
	if !result.Success {
		t.Fatalf("nested write failed: %s", result.Error)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b", "c", "deep.txt")); err != nil {
		t.Fatalf("Expected file on disk: %v", err)
	}

	result = tool.Execute(ctx, map[string]any{
		"operation": "read",
		"path":      "a/b/c/deep.txt",
	})
	if !result.Success {
		t.Fatalf("read failed: %s", result.Error)
	}
	output, _ := result.Output.(map[string]any)
	if output["content"] != "nested" {
		t.Errorf("Unexpected content: %v", output["content"])
	}
}

func TestFilesystemRejectsWriteThroughSymlinkedDir(t *testing.T) {
	tool, root := newTestFilesystem(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	// 已存在的祖先是指向工作区外的符号链接，新文件路径必须被拒绝。
	result := tool.Execute(context.Background(), map[string]any{
		"operation": "write",
		"path":      "escape/sub/new.txt",
		"content":   "x",
	})
	if result.Success {
		t.Error("Expected write through escaping symlink to be rejected")
	}
}

func TestFilesystemRejectsEscape(t *testing.T) {
	tool, _ := newTestFilesystem(t)
	ctx := context.Background()

	for _, path := range []string{"../outside.txt", "/etc/passwd", "a/../../outside"} {
		result := tool.Execute(ctx, map[string]any{
			"operation": "read",
			"path":      path,
		})
		if result.Success {
			t.Errorf("Expected path %q to be rejected", path)
		}
	}
}

func TestFilesystemRejectsSymlinkEscape(t *testing.T) {
	tool, root := newTestFilesystem(t)
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(target, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result := tool.Execute(context.Background(), map[string]any{
		"operation": "read",
		"path":      "link.txt",
	})
	if result.Success {
		t.Error("Expected symlink escaping the workspace to be rejected")
	}
}

func TestFilesystemListAndSearch(t *testing.T) {
	tool, root := newTestFilesystem(t)
	ctx := context.Background()

	for _, name := range []string{"a.go", "b.go", "c.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	result := tool.Execute(ctx, map[string]any{"operation": "list", "path": "."})
	if !result.Success {
		t.Fatalf("list failed: %s", result.Error)
	}

	result = tool.Execute(ctx, map[string]any{
		"operation": "search",
		"path":      ".",
		"pattern":   "*.go",
	})
	if !result.Success {
		t.Fatalf("search failed: %s", result.Error)
	}
	output, _ := result.Output.(map[string]any)
	matches, _ := output["matches"].([]string)
	if len(matches) != 2 {
		t.Errorf("Expected 2 go files, got %v", output["matches"])
	}
}

func TestFilesystemDeleteRefusesRoot(t *testing.T) {
	tool, _ := newTestFilesystem(t)

	result := tool.Execute(context.Background(), map[string]any{
		"operation": "delete",
		"path":      ".",
	})
	if result.Success {
		t.Error("Expected deleting the workspace root to be refused")
	}
}

func TestFilesystemInfo(t *testing.T) {
	tool, root := newTestFilesystem(t)
	if err := os.WriteFile(filepath.Join(root, "f.txt"), []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}

	result := tool.Execute(context.Background(), map[string]any{
		"operation": "info",
		"path":      "f.txt",
	})
	if !result.Success {
		t.Fatalf("info failed: %s", result.Error)
	}
	output, _ := result.Output.(map[string]any)
	if output["size"] != int64(4) {
		t.Errorf("Unexpected size: %v", output["size"])
	}
}
