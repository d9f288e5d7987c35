// Package testing provides a shared, feature-aware test suite for
// IEntityStore implementations. Backends invoke RunEntityStoreTests
// with a factory; tests for unsupported features are skipped.
package testing
