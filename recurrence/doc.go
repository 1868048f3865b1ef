// Package recurrence defines the series rule and its expansion into
// concrete occurrence windows.
//
// A [Rule] describes the cadence (daily, weekly, monthly, or a custom
// weekday set) and exactly one bound: an occurrence count or an inclusive
// until date. [Expand] turns an anchor window plus a rule into the full
// finite sequence of occurrence windows, computed once at creation time.
//
// Monthly expansion keeps the anchor's day-of-month and clamps to the last
// day of shorter months, so a series anchored on the 31st still produces
// one occurrence in every month.
package recurrence
