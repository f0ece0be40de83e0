package bidsderiv

// Artifact is a pipeline output to be sorted: either a single file or a
// directory tree such as a MELODIC output bundle. Artifacts are only ever read.
type Artifact struct {
	Path   string
	Folder bool
}

func FileArtifact(path string) Artifact {
	return Artifact{Path: path}
}

func FolderArtifact(path string) Artifact {
	return Artifact{Path: path, Folder: true}
}

// Job pairs one artifact with the rule that places it. Index is the job's
// position in the sort, used in logs and errors.
type Job struct {
	Index    int
	Artifact Artifact
	Rule     SortRule
}

// check verifies that the artifact variant agrees with the rule kind.
func (j Job) check() error {
	if j.Artifact.Folder != (j.Rule.Kind == Folder) {
		return &KindMismatchError{
			Index:    j.Index,
			Rule:     j.Rule.label(),
			Artifact: j.Artifact.Path,
			Folder:   j.Artifact.Folder,
		}
	}
	return nil
}

// Pair zips artifacts with rules by position. The lists must be the same
// length.
func Pair(group string, artifacts []Artifact, rules RuleTable) ([]Job, error) {
	if len(artifacts) != rules.Len() {
		return nil, &ArityMismatchError{Group: group, Artifacts: len(artifacts), Rules: rules.Len()}
	}

	jobs := make([]Job, len(artifacts))
	for i, a := range artifacts {
		jobs[i] = Job{Index: i, Artifact: a, Rule: rules.At(i)}
	}

	return jobs, nil
}

// PairLists builds jobs from the parallel file and folder lists, numbering
// file jobs first. Both arity checks happen before anything is returned.
func PairLists(files []string, fileRules RuleTable, folders []string, folderRules RuleTable) ([]Job, error) {
	fileArtifacts := make([]Artifact, len(files))
	for i, p := range files {
		fileArtifacts[i] = FileArtifact(p)
	}

	folderArtifacts := make([]Artifact, len(folders))
	for i, p := range folders {
		folderArtifacts[i] = FolderArtifact(p)
	}

	fileJobs, err := Pair("files", fileArtifacts, fileRules)
	if err != nil {
		return nil, err
	}

	folderJobs, err := Pair("folders", folderArtifacts, folderRules)
	if err != nil {
		return nil, err
	}

	jobs := append(fileJobs, folderJobs...)
	for i := range jobs {
		jobs[i].Index = i
	}

	return jobs, nil
}
