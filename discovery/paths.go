package discovery

// commonPaths is the fixed catalog of conventional paths appended when a
// caller opts in. The root itself is included so domain audits always
// test the front door.
var commonPaths = []string{
	"/",
	"/about",
	"/contact",
	"/blog",
	"/news",
	"/products",
	"/services",
	"/pricing",
	"/faq",
	"/docs",
	"/sitemap",
	"/search",
}
