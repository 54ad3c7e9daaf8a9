// Package hoststats samples the host's temperature and the service's own
// resource use for the Host screen and the time-series writer.
//
// Tracker keeps running max, min and average temperature, each rounded to
// one decimal. Monitor samples on an interval and hands every Snapshot to a
// callback.
package hoststats
