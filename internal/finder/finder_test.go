package finder

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/orizon-lang/orizon/internal/moduledesc"
)

func writeModuleInfo(t *testing.T, name string) []byte {
	t.Helper()

	d, err := moduledesc.NewBuilder(name).Packages(name).Build()
	if err != nil {
		t.Fatalf("build descriptor %s: %v", name, err)
	}

	data, err := moduledesc.Encode(d)
	if err != nil {
		t.Fatalf("encode descriptor %s: %v", name, err)
	}

	return data
}

func writeJmod(t *testing.T, path, name string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	w, err := zw.Create("classes/module-info")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.Write(writeModuleInfo(t, name)); err != nil {
		t.Fatal(err)
	}

	pkgFile, err := zw.Create("classes/" + name + "/Main.class")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := pkgFile.Write([]byte("stub")); err != nil {
		t.Fatal(err)
	}

	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writePlainJar(t *testing.T, path string, classEntries []string, services map[string][]string, mainClass string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	for _, entry := range classEntries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := w.Write([]byte("stub")); err != nil {
			t.Fatal(err)
		}
	}

	for service, providers := range services {
		w, err := zw.Create("META-INF/services/" + service)
		if err != nil {
			t.Fatal(err)
		}

		for _, p := range providers {
			if _, err := w.Write([]byte(p + "\n")); err != nil {
				t.Fatal(err)
			}
		}
	}

	if mainClass != "" {
		w, err := zw.Create("META-INF/MANIFEST.MF")
		if err != nil {
			t.Fatal(err)
		}

		if _, err := w.Write([]byte("Manifest-Version: 1.0\nMain-Class: " + mainClass + "\n")); err != nil {
			t.Fatal(err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeExplodedModule(t *testing.T, dir, name string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "module-info"), writeModuleInfo(t, name), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, name, "Main.class"), []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindLocatesJmod(t *testing.T) {
	root := t.TempDir()
	writeJmod(t, filepath.Join(root, "com.example.a.jmod"), "com.example.a")

	f := New([]string{root})

	ref, err := f.Find("com.example.a")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if ref == nil {
		t.Fatal("expected to find com.example.a")
	}

	if !ref.Descriptor.Packages["com.example.a"] {
		t.Fatalf("expected package com.example.a, got %v", ref.Descriptor.Packages)
	}
}

func TestFindNotFoundReturnsNilNil(t *testing.T) {
	root := t.TempDir()

	f := New([]string{root})

	ref, err := f.Find("does.not.exist")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if ref != nil {
		t.Fatalf("expected nil reference, got %+v", ref)
	}
}

func TestEarlierRootShadowsLaterDuplicate(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	writeJmod(t, filepath.Join(rootA, "com.example.a.jmod"), "com.example.a")
	writeJmod(t, filepath.Join(rootB, "com.example.a.jmod"), "com.example.a")

	f := New([]string{rootA, rootB})

	all, err := f.FindAll()
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}

	if len(all) != 1 {
		t.Fatalf("expected exactly one admitted module, got %d", len(all))
	}

	if all[0].Location != filepath.Join(rootA, "com.example.a.jmod") {
		t.Fatalf("expected earlier root to win, got %s", all[0].Location)
	}
}

func TestDuplicateInSameRootIsFatal(t *testing.T) {
	root := t.TempDir()

	writeJmod(t, filepath.Join(root, "a.jmod"), "com.example.a")
	writeJmod(t, filepath.Join(root, "b.jmod"), "com.example.a")

	f := New([]string{root})

	if _, err := f.FindAll(); err == nil {
		t.Fatal("expected error for duplicate module name within the same root")
	}
}

func TestDeriveAutomaticModuleFromPlainJar(t *testing.T) {
	root := t.TempDir()
	writePlainJar(t, filepath.Join(root, "commons-io-2.11.0.jar"),
		[]string{"org/apache/commons/io/IOUtils.class"},
		map[string][]string{"org.example.Service": {"org.apache.commons.io.DefaultService"}},
		"org.apache.commons.io.Main",
	)

	f := New([]string{root})

	ref, err := f.Find("commons.io")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if ref == nil {
		t.Fatal("expected a synthetic automatic module")
	}

	if !ref.Descriptor.IsAutomatic() {
		t.Fatal("expected derived module to be automatic")
	}

	if ref.Descriptor.Version == nil || ref.Descriptor.Version.String() != "2.11.0" {
		t.Fatalf("expected version 2.11.0, got %v", ref.Descriptor.Version)
	}

	if ref.Descriptor.MainClass != "org.apache.commons.io.Main" {
		t.Fatalf("expected main class to be read from manifest, got %q", ref.Descriptor.MainClass)
	}

	if _, ok := ref.Descriptor.Provides["org.example.Service"]; !ok {
		t.Fatalf("expected provides derived from META-INF/services, got %v", ref.Descriptor.Provides)
	}
}

func TestScanExplodedDirectory(t *testing.T) {
	root := t.TempDir()
	writeExplodedModule(t, filepath.Join(root, "com.example.b"), "com.example.b")

	f := New([]string{root})

	ref, err := f.Find("com.example.b")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	if ref == nil {
		t.Fatal("expected to find the exploded module")
	}

	if !ref.Descriptor.Packages["com.example.b"] {
		t.Fatalf("expected package com.example.b, got %v", ref.Descriptor.Packages)
	}
}

func TestHashSupplierIsStable(t *testing.T) {
	root := t.TempDir()
	writeJmod(t, filepath.Join(root, "com.example.a.jmod"), "com.example.a")

	f := New([]string{root})

	ref, err := f.Find("com.example.a")
	if err != nil || ref == nil {
		t.Fatalf("Find: ref=%v err=%v", ref, err)
	}

	h1, err := ref.Hash("sha256")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	h2, err := ref.Hash("sha256")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if string(h1) != string(h2) {
		t.Fatal("expected hash supplier to be deterministic across calls")
	}
}
