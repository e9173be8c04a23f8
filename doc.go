// Package varref resolves variable references embedded in rich-text content.
//
// Content refers to catalog variables with display identifiers
// (@source.field or @source.field#abc1) or system identifiers
// (@gv_<id>_<field>). A Registry caches the variable catalog, a Translator
// converts between the two identifier forms, a Resolver substitutes values
// and a Converter keeps the HTML, raw and plain-text projections of a
// document in sync. Editor ties the pieces together behind the small surface
// editor widgets bind to.
package varref
