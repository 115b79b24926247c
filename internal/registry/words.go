package registry

// Session IDs are <adjective>-<adjective>-<noun> triples drawn from the
// lists below. Two separate adjective positions keep the namespace large
// without making IDs longer.

var firstAdjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "coral", "crisp", "dapper",
	"deep", "dusty", "eager", "early", "fancy", "fleet", "gentle", "glad",
	"golden", "grand", "happy", "hazel", "humble", "ivory", "jolly", "keen",
	"kind", "lively", "lucky", "mellow", "merry", "misty", "noble", "olive",
	"pale", "plucky", "proud", "quick", "quiet", "rapid", "rosy", "rustic",
	"sage", "sandy", "sharp", "silent", "sleek", "smooth", "snug", "solid",
	"spry", "stout", "sunny", "swift", "tidy", "vivid", "warm", "wise",
}

var secondAdjectives = []string{
	"autumn", "blue", "bright", "broad", "cedar", "cobalt", "copper",
	"crimson", "dawn", "dew", "dusk", "ember", "fern", "flint", "fog",
	"frost", "glen", "green", "harbor", "indigo", "iron", "jade", "lake",
	"lunar", "maple", "marble", "meadow", "moss", "night", "ocean", "onyx",
	"opal", "pearl", "pine", "plum", "polar", "rain", "river", "ruby",
	"rust", "shade", "silver", "sky", "slate", "snow", "solar", "spring",
	"star", "stone", "storm", "summer", "thorn", "tidal", "violet", "willow",
	"winter",
}

var nouns = []string{
	"anchor", "antler", "archer", "badger", "beacon", "bison", "canyon",
	"compass", "condor", "cricket", "dolphin", "falcon", "ferret", "finch",
	"fox", "gazelle", "gull", "harbor", "hawk", "heron", "ibis", "jackal",
	"kestrel", "lantern", "lemur", "lynx", "marmot", "marten", "meerkat",
	"mole", "moose", "narwhal", "otter", "owl", "panther", "parrot",
	"pelican", "penguin", "pike", "puffin", "quail", "rabbit", "raven",
	"robin", "salmon", "seal", "sparrow", "squid", "stoat", "swan", "tapir",
	"tern", "toucan", "walrus", "weasel", "wren",
}
