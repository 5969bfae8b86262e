// Package profiles loads the catalog of scan profiles. Each profile names a
// deprecated dependency or API pattern, the detector that finds it, and the
// title of the tracking issue its findings are reconciled into.
package profiles
