package budget

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer renders numbers in decision messages with English grouping.
var printer = message.NewPrinter(language.English)
