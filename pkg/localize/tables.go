package localize

// tables holds the per-language UI strings. Keys missing from a language
// fall back to English in Text.
var tables = map[string]map[string]string{
	"en": {
		"catalog.root":          "Book catalog",
		"catalog.newdate":       "New books (by date)",
		"catalog.newdate.desc":  "Recently added books ordered by arrival date",
		"catalog.newtitle":      "New books (by title)",
		"catalog.newtitle.desc": "Recently added books ordered by title",
		"catalog.authors":       "By authors",
		"catalog.authors.desc":  "Browse authors alphabetically",
		"catalog.series":        "By series",
		"catalog.series.desc":   "Browse book series",
		"catalog.genres":        "By genres",
		"catalog.genres.desc":   "Browse the genre tree",

		"author.details":      "Books by author",
		"author.series":       "Books by series",
		"author.series.desc":  "Series the author contributed to",
		"author.noseries":     "Books outside series",
		"author.alphabetic":   "Books alphabetically",
		"author.bydate":       "Books by date",
		"authors.in.bucket":   "Authors on",
		"series.in.bucket":    "Series on",
		"books.in.series":     "Books in series",
		"books.in.genre":      "Books in genre",

		"search.title":       "Search results",
		"search.placeholder": "Search books and authors",
		"search.authors":     "Authors found",
		"search.books":       "Books found",

		"label.format":   "Format",
		"label.size":     "Size",
		"label.download": "Download",
		"label.read":     "Read",
		"label.search":   "Search",
		"label.year":     "Year",
		"label.prev":     "Previous",
		"label.next":     "Next",
	},
	"ru": {
		"catalog.root":          "Каталог книг",
		"catalog.newdate":       "Новинки (по дате)",
		"catalog.newdate.desc":  "Книги, недавно добавленные в библиотеку, по дате поступления",
		"catalog.newtitle":      "Новинки (по названию)",
		"catalog.newtitle.desc": "Книги, недавно добавленные в библиотеку, по названию",
		"catalog.authors":       "По авторам",
		"catalog.authors.desc":  "Поиск книг по авторам",
		"catalog.series":        "По сериям",
		"catalog.series.desc":   "Поиск книг по сериям",
		"catalog.genres":        "По жанрам",
		"catalog.genres.desc":   "Поиск книг по жанрам",

		"author.details":      "Книги автора",
		"author.series":       "Книги по сериям",
		"author.series.desc":  "Серии, в которых участвовал автор",
		"author.noseries":     "Книги вне серий",
		"author.alphabetic":   "Книги по алфавиту",
		"author.bydate":       "Книги по дате",
		"authors.in.bucket":   "Авторы на",
		"series.in.bucket":    "Серии на",
		"books.in.series":     "Книги серии",
		"books.in.genre":      "Книги жанра",

		"search.title":       "Результаты поиска",
		"search.placeholder": "Поиск книг и авторов",
		"search.authors":     "Найденные авторы",
		"search.books":       "Найденные книги",

		"label.format":   "Формат",
		"label.size":     "Размер",
		"label.download": "Скачать",
		"label.read":     "Читать",
		"label.search":   "Искать",
		"label.year":     "Год",
		"label.prev":     "Назад",
		"label.next":     "Вперёд",
	},
}
