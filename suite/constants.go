package suite

// On-disk layout of a test suite directory.
const (
	// Suffix is appended to suite directory names.
	Suffix = "_suite"

	// FeaturesFolder is the default folder name for feature areas.
	FeaturesFolder = "features"

	// SupportFolder is the default folder name for shared support code.
	SupportFolder = "support"

	// ConfFile is the suite configuration filename.
	ConfFile = "suite.conf"

	// RequirementsFile is the suite requirements filename.
	RequirementsFile = "requirements.txt"

	// LibFolder is the local dependency install target, created on demand.
	LibFolder = ".lib"

	// EnvFile is the optional suite-local configuration file.
	EnvFile = ".env"
)

const defaultConfContent = `# Specifies the framework version the test suite is guaranteed to support.
# The framework uses this to ensure compatibility before execution.
# framework_version=0.0.1

# Defines the name of the directory that contains all feature area directories for the test suite.
# The default is usually features.
# features_folder=features

# Defines the name of the directory containing the shared utility modules and helper functions.
# The default is usually support.
# support_folder=support
`

const defaultRequirementsContent = `# Specific dependencies required for running this test suite.
#
# Examples:
#
# Exact version
# requests==2.0.1
#
# Minimum required version
# requests>=2.0.1
#
# Compatible release (Recommended)
# requests~=2.0.1      # >= 2.0.1, but < 2.1.0
# requests~=2.0        # >= 2.0.0, but < 3.0.0
# requests<3.0,>=2.0.1 # >= 2.0.1, but < 3.0.0
`

const supportMarkerFile = "doc.go"

const supportMarkerContent = `// Package support holds shared helper code importable by step modules.
package support
`
