// Package html converts HTML markup to readable plain text. It strips
// tags, scripts and styles, and decodes entities. The EML normaliser uses
// it for messages that carry only an HTML body.
package html
