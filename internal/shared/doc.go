// Package shared groups helpers used across the licenseadmin packages that
// carry no domain logic of their own. Test helpers live in testutil.
package shared
